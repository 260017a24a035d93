package models

import "time"

type PortfolioRequest struct {
	Sort string `query:"sort" json:"sort" validate:"omitempty,oneof=name symbol isin qty avgPrice current value gain lastUpdated"`
	Dir  string `query:"dir" json:"dir" default:"asc" validate:"oneof=asc desc"`
}

// RangeQuery is resolved against the selected range when Range is empty.
type RangeQuery struct {
	Range string `query:"range" json:"range"`
}

type AddHoldingRequest struct {
	Symbol       string     `json:"symbol" validate:"required,max=32"`
	Qty          float64    `json:"qty" validate:"gte=0"`
	AvgPrice     float64    `json:"avgPrice" validate:"gte=0"`
	Fetch        *bool      `json:"fetch" default:"true"`
	LastUpdated  *time.Time `json:"lastUpdated"`
	CurrentPrice *float64   `json:"currentPrice" validate:"omitempty,gte=0"`
}

type HoldingPathRequest struct {
	ID string `param:"id" validate:"required"`
}

type RefreshRequest struct {
	Force bool `json:"force"`
}

type RangeRefreshRequest struct {
	Range string `json:"range" validate:"required"`
	Force bool   `json:"force"`
}

type SelectRangeRequest struct {
	Range string `json:"range" validate:"required"`
}

// AutoRefreshRequest leaves a setting unchanged when its field is omitted.
type AutoRefreshRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalMinutes *int  `json:"intervalMinutes" validate:"omitempty,gte=1"`
}
