package models

import "sort"

// Candle is one day's value in the display currency. Time is an ISO date
// (YYYY-MM-DD), so lexical order equals chronological order.
type Candle struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// MergeHistories merges incoming into existing by day. Incoming values win
// on shared days; the result is sorted ascending with unique days.
// It is the only way a holding's history grows.
func MergeHistories(existing, incoming []Candle) []Candle {
	byDay := make(map[string]float64, len(existing)+len(incoming))
	for _, c := range existing {
		byDay[c.Time] = c.Value
	}
	for _, c := range incoming {
		byDay[c.Time] = c.Value
	}

	out := make([]Candle, 0, len(byDay))
	for day, v := range byDay {
		out = append(out, Candle{Time: day, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func cloneCandles(in []Candle) []Candle {
	if in == nil {
		return nil
	}
	out := make([]Candle, len(in))
	copy(out, in)
	return out
}
