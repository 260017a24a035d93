package models

import (
	"slices"
	"time"
)

// Holding is one portfolio line item. ID, Symbol, Qty and AvgPrice are
// stable once created; refresh only touches the market fields.
type Holding struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name,omitempty"`
	ISIN          string     `json:"isin,omitempty"`
	Qty           float64    `json:"qty"`
	AvgPrice      float64    `json:"avgPrice"`
	CurrentPrice  *float64   `json:"currentPrice,omitempty"`
	History       []Candle   `json:"history,omitempty"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
	IsRefreshing  bool       `json:"isRefreshing,omitempty"`
	FetchedRanges []Range    `json:"fetchedRanges,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Price is the current price, falling back to the average cost.
func (h *Holding) Price() float64 {
	if h.CurrentPrice != nil {
		return *h.CurrentPrice
	}
	return h.AvgPrice
}

func (h *Holding) Value() float64 { return h.Qty * h.Price() }

func (h *Holding) Cost() float64 { return h.Qty * h.AvgPrice }

// DisplayName falls back to the symbol.
func (h *Holding) DisplayName() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Symbol
}

func (h *Holding) HasFetched(r Range) bool {
	return slices.Contains(h.FetchedRanges, r)
}

// MarkFetched records r once.
func (h *Holding) MarkFetched(r Range) {
	if !h.HasFetched(r) {
		h.FetchedRanges = append(h.FetchedRanges, r)
	}
}

// ApplyQuote writes a successful fetch for range r into h.
func (h *Holding) ApplyQuote(res *QuoteResult, r Range, now time.Time) {
	if res.Quote.Name != "" {
		h.Name = res.Quote.Name
	}
	if res.Quote.ISIN != "" {
		h.ISIN = res.Quote.ISIN
	}
	price := res.Quote.Price
	h.CurrentPrice = &price
	h.History = MergeHistories(h.History, res.History)
	ts := now.UTC()
	h.LastUpdated = &ts
	h.IsRefreshing = false
	h.Error = ""
	h.MarkFetched(r)
}

// Clone returns a deep copy.
func (h Holding) Clone() Holding {
	out := h
	if h.CurrentPrice != nil {
		p := *h.CurrentPrice
		out.CurrentPrice = &p
	}
	if h.LastUpdated != nil {
		t := *h.LastUpdated
		out.LastUpdated = &t
	}
	out.History = cloneCandles(h.History)
	if h.FetchedRanges != nil {
		out.FetchedRanges = slices.Clone(h.FetchedRanges)
	}
	return out
}

// Quote is the provider's current snapshot for one symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
	Currency      string  `json:"currency"`
	Name          string  `json:"name,omitempty"`
	ISIN          string  `json:"isin,omitempty"`
}

// QuoteResult is a quote plus daily history for the requested range.
type QuoteResult struct {
	Quote   Quote    `json:"quote"`
	History []Candle `json:"history"`
}
