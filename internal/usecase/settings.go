package usecase

import (
	"context"
	"encoding/json"
	"sync"

	drepo "FolioPulse/internal/domain/repository"
	"FolioPulse/pkg/logger"
)

// Storage keys.
const (
	KeyPortfolio       = "portfolio"
	KeyIntervalMinutes = "autoRefreshIntervalMinutes"
	KeyUI              = "ui"
)

const DefaultIntervalMinutes = 5

// UIState is the persisted view toggles. Unknown keys written by clients
// are kept in Extra and round-trip untouched.
type UIState struct {
	ShowChart     bool                       `json:"showChart"`
	ShowBreakdown bool                       `json:"showBreakdown"`
	ShowTable     bool                       `json:"showTable"`
	Extra         map[string]json.RawMessage `json:"-"`
}

func defaultUIState() UIState {
	return UIState{ShowChart: true, ShowTable: true}
}

func (u UIState) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(u.Extra)+3)
	for k, v := range u.Extra {
		m[k] = v
	}
	m["showChart"] = u.ShowChart
	m["showBreakdown"] = u.ShowBreakdown
	m["showTable"] = u.ShowTable
	return json.Marshal(m)
}

func (u *UIState) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	u.Extra = nil
	for k, v := range m {
		var err error
		switch k {
		case "showChart":
			err = json.Unmarshal(v, &u.ShowChart)
		case "showBreakdown":
			err = json.Unmarshal(v, &u.ShowBreakdown)
		case "showTable":
			err = json.Unmarshal(v, &u.ShowTable)
		default:
			if u.Extra == nil {
				u.Extra = make(map[string]json.RawMessage)
			}
			u.Extra[k] = v
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Settings persists the UI state and auto-refresh interval. Storage errors
// are logged and swallowed; reads fall back to defaults.
type Settings struct {
	storage drepo.Storage
	log     *logger.Logger
	mu      sync.Mutex
}

func NewSettings(storage drepo.Storage, log *logger.Logger) *Settings {
	return &Settings{storage: storage, log: log}
}

// UIState returns the stored UI state merged over defaults.
func (s *Settings) UIState(ctx context.Context) UIState {
	st := defaultUIState()
	if _, err := s.storage.Get(ctx, KeyUI, &st); err != nil {
		s.log.Warn("read ui state", logger.Error(err))
		return defaultUIState()
	}
	return st
}

// PatchUIState shallow-merges patch into the stored state and writes it back.
func (s *Settings) PatchUIState(ctx context.Context, patch map[string]json.RawMessage) (UIState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.UIState(ctx)
	raw, err := json.Marshal(cur)
	if err != nil {
		return cur, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return cur, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return cur, err
	}
	var next UIState
	if err := json.Unmarshal(raw, &next); err != nil {
		return cur, &ValidationError{Index: -1, Field: "ui state", Reason: err.Error()}
	}
	if err := s.storage.Set(ctx, KeyUI, next); err != nil {
		s.log.Warn("write ui state", logger.Error(err))
		return next, err
	}
	return next, nil
}

// Interval returns the stored interval and whether it is the built-in default.
func (s *Settings) Interval(ctx context.Context) (minutes int, isDefault bool) {
	found, err := s.storage.Get(ctx, KeyIntervalMinutes, &minutes)
	if err != nil {
		s.log.Warn("read auto refresh interval", logger.Error(err))
		return DefaultIntervalMinutes, true
	}
	if !found || minutes < 1 {
		return DefaultIntervalMinutes, !found
	}
	return minutes, false
}

func (s *Settings) SetInterval(ctx context.Context, minutes int) {
	if err := s.storage.Set(ctx, KeyIntervalMinutes, minutes); err != nil {
		s.log.Warn("write auto refresh interval", logger.Error(err))
	}
}
