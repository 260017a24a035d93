package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FolioPulse/internal/domain/models"
	"FolioPulse/pkg/util"
)

// EncodeSnapshot serialises holdings field for field, indented.
func EncodeSnapshot(holdings []models.Holding) ([]byte, error) {
	if holdings == nil {
		holdings = []models.Holding{}
	}
	return json.MarshalIndent(holdings, "", "  ")
}

// DecodeSnapshot validates blob and returns normalised holdings. Validation
// is all or nothing: the first bad item fails the whole snapshot.
func DecodeSnapshot(blob []byte, newID func() string) ([]models.Holding, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(blob, &items); err != nil || items == nil {
		return nil, &ValidationError{Index: -1, Reason: "expected an array"}
	}

	out := make([]models.Holding, 0, len(items))
	for i, raw := range items {
		h, err := decodeSnapshotItem(i, raw, newID)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func decodeSnapshotItem(idx int, raw json.RawMessage, newID func() string) (models.Holding, error) {
	var obj map[string]json.RawMessage
	if jsonKind(raw) != '{' || json.Unmarshal(raw, &obj) != nil {
		return models.Holding{}, &ValidationError{Index: idx, Reason: "expected object"}
	}

	symbol, ok := stringField(obj, "symbol")
	if !ok || symbol == "" {
		return models.Holding{}, &ValidationError{Index: idx, Field: "symbol", Reason: "missing or invalid 'symbol'"}
	}
	qty, err := numberField(idx, obj, "qty")
	if err != nil {
		return models.Holding{}, err
	}
	avg, err := numberField(idx, obj, "avgPrice")
	if err != nil {
		return models.Holding{}, err
	}

	h := models.Holding{
		Symbol:   strings.ToUpper(symbol),
		Qty:      qty,
		AvgPrice: avg,
	}
	if id, ok := stringField(obj, "id"); ok && id != "" {
		h.ID = id
	} else {
		h.ID = newID()
	}
	h.Name, _ = stringField(obj, "name")
	h.ISIN, _ = stringField(obj, "isin")

	if raw, ok := obj["currentPrice"]; ok && jsonKind(raw) == '0' {
		var p float64
		if json.Unmarshal(raw, &p) == nil {
			h.CurrentPrice = &p
		}
	}
	if s, ok := stringField(obj, "lastUpdated"); ok {
		if t, ok := util.ParseTime(s); ok {
			t = t.UTC()
			h.LastUpdated = &t
		}
	}
	if raw, ok := obj["history"]; ok && jsonKind(raw) == '[' {
		h.History = decodeCandles(raw)
	}
	if raw, ok := obj["fetchedRanges"]; ok && jsonKind(raw) == '[' {
		var names []string
		if json.Unmarshal(raw, &names) == nil {
			for _, n := range names {
				if r := models.Range(n); r.Valid() {
					h.MarkFetched(r)
				}
			}
		}
	}
	return h, nil
}

// decodeCandles keeps well-typed candles and drops the rest.
func decodeCandles(raw json.RawMessage) []models.Candle {
	var items []map[string]json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]models.Candle, 0, len(items))
	for _, it := range items {
		day, ok := stringField(it, "time")
		if !ok || day == "" {
			continue
		}
		v, ok := it["value"]
		if !ok || jsonKind(v) != '0' {
			continue
		}
		var f float64
		if json.Unmarshal(v, &f) != nil {
			continue
		}
		out = append(out, models.Candle{Time: day, Value: f})
	}
	return out
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok || jsonKind(raw) != '"' {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// numberField returns 0 for an absent key and a ValidationError for a
// present key that is not a number.
func numberField(idx int, obj map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := obj[key]
	if !ok {
		return 0, nil
	}
	var f float64
	if jsonKind(raw) != '0' || json.Unmarshal(raw, &f) != nil {
		return 0, &ValidationError{Index: idx, Field: key, Reason: fmt.Sprintf("'%s' must be a number", key)}
	}
	return f, nil
}

// jsonKind classifies a raw value: '{', '[', '"', '0' for numbers,
// 'b' for booleans and 'n' for null.
func jsonKind(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	switch c := raw[0]; {
	case c == '{' || c == '[' || c == '"':
		return c
	case c == '-' || (c >= '0' && c <= '9'):
		return '0'
	case c == 't' || c == 'f':
		return 'b'
	case c == 'n':
		return 'n'
	default:
		return 0
	}
}

// seedTime normalises an optional caller-supplied timestamp.
func seedTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
