package http

// Envelope wraps every JSON reply. Data holds the payload on success and a
// list of AppError or ValidationError on failure.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Malformed reports a body that could not be read or decoded at all.
func Malformed(err error) []ValidationError {
	return []ValidationError{{Code: CodeMalformed, Message: err.Error()}}
}
