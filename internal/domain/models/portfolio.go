package models

import (
	"sort"
	"strings"
	"time"
)

// Totals are derived from the holdings and never stored.
type Totals struct {
	Value       float64 `json:"totalValue"`
	Cost        float64 `json:"totalCost"`
	Gain        float64 `json:"totalGain"`
	GainPercent float64 `json:"totalGainPercent"`
}

func ComputeTotals(holdings []Holding) Totals {
	var t Totals
	for i := range holdings {
		t.Value += holdings[i].Value()
		t.Cost += holdings[i].Cost()
	}
	t.Gain = t.Value - t.Cost
	if t.Cost != 0 {
		t.GainPercent = t.Gain / t.Cost * 100
	}
	return t
}

// AggregateHistory sums value*qty per day across holdings that have a
// candle for that day. No forward or back fill.
func AggregateHistory(holdings []Holding) []Candle {
	byDay := make(map[string]float64)
	for i := range holdings {
		for _, c := range holdings[i].History {
			byDay[c.Time] += c.Value * holdings[i].Qty
		}
	}
	out := make([]Candle, 0, len(byDay))
	for day, v := range byDay {
		out = append(out, Candle{Time: day, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Series is one holding's contribution to the portfolio chart.
type Series struct {
	ID      string   `json:"id"`
	Symbol  string   `json:"symbol"`
	Name    string   `json:"name,omitempty"`
	History []Candle `json:"history"`
}

// Breakdown returns each holding's position value over r, sorted by symbol.
func Breakdown(holdings []Holding, r Range, now time.Time) []Series {
	out := make([]Series, 0, len(holdings))
	for i := range holdings {
		h := &holdings[i]
		filtered := FilterHistory(h.History, r, now)
		for j := range filtered {
			filtered[j].Value *= h.Qty
		}
		out = append(out, Series{ID: h.ID, Symbol: h.Symbol, Name: h.Name, History: filtered})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// SortField names a sortable holding column.
type SortField string

const (
	SortName        SortField = "name"
	SortSymbol      SortField = "symbol"
	SortISIN        SortField = "isin"
	SortQty         SortField = "qty"
	SortAvgPrice    SortField = "avgPrice"
	SortCurrent     SortField = "current"
	SortValue       SortField = "value"
	SortGain        SortField = "gain"
	SortLastUpdated SortField = "lastUpdated"
)

// SortHoldings orders holdings in place by field. Unknown fields keep
// insertion order.
func SortHoldings(holdings []Holding, field SortField, desc bool) {
	less := sortLess(field)
	if less == nil {
		return
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		if desc {
			return less(&holdings[j], &holdings[i])
		}
		return less(&holdings[i], &holdings[j])
	})
}

func sortLess(field SortField) func(a, b *Holding) bool {
	switch field {
	case SortName:
		return func(a, b *Holding) bool {
			return strings.ToLower(a.DisplayName()) < strings.ToLower(b.DisplayName())
		}
	case SortSymbol:
		return func(a, b *Holding) bool { return a.Symbol < b.Symbol }
	case SortISIN:
		return func(a, b *Holding) bool { return a.ISIN < b.ISIN }
	case SortQty:
		return func(a, b *Holding) bool { return a.Qty < b.Qty }
	case SortAvgPrice:
		return func(a, b *Holding) bool { return a.AvgPrice < b.AvgPrice }
	case SortCurrent:
		return func(a, b *Holding) bool { return a.Price() < b.Price() }
	case SortValue:
		return func(a, b *Holding) bool { return a.Value() < b.Value() }
	case SortGain:
		return func(a, b *Holding) bool { return a.Value()-a.Cost() < b.Value()-b.Cost() }
	case SortLastUpdated:
		return func(a, b *Holding) bool {
			var ta, tb time.Time
			if a.LastUpdated != nil {
				ta = *a.LastUpdated
			}
			if b.LastUpdated != nil {
				tb = *b.LastUpdated
			}
			return ta.Before(tb)
		}
	default:
		return nil
	}
}
