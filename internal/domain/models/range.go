package models

import (
	"fmt"
	"strings"
	"time"

	"FolioPulse/pkg/util"
)

// Range is a named lookback horizon. It governs both chart filtering and
// the per-holding fetch cache.
type Range string

const (
	Range1D Range = "1D"
	Range1W Range = "1W"
	Range1M Range = "1M"
	Range3M Range = "3M"
	Range1Y Range = "1Y"
	Range5Y Range = "5Y"
)

// DefaultRange is the primary chart view. It is never served from the fetch cache.
const DefaultRange = Range1M

type rangeSpec struct {
	years, months, days int
	horizon             string
}

// Ranges lists every range ordered by horizon length.
var Ranges = []Range{Range1D, Range1W, Range1M, Range3M, Range1Y, Range5Y}

var rangeTable = map[Range]rangeSpec{
	Range1D: {days: 1, horizon: "1d"},
	Range1W: {days: 7, horizon: "5d"},
	Range1M: {months: 1, horizon: "1mo"},
	Range3M: {months: 3, horizon: "3mo"},
	Range1Y: {years: 1, horizon: "1y"},
	Range5Y: {years: 5, horizon: "5y"},
}

// ParseRange accepts a range name case-insensitively.
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown range %q", s)
	}
	return r, nil
}

func (r Range) Valid() bool {
	_, ok := rangeTable[r]
	return ok
}

func (r Range) String() string { return string(r) }

// Cutoff returns the earliest instant covered by r relative to now.
// Unknown ranges return the Unix epoch, which filters nothing.
func (r Range) Cutoff(now time.Time) time.Time {
	row, ok := rangeTable[r]
	if !ok {
		return time.Unix(0, 0).UTC()
	}
	return now.AddDate(-row.years, -row.months, -row.days)
}

// HorizonToken is the provider's name for r; empty for unknown ranges.
func (r Range) HorizonToken() string {
	return rangeTable[r].horizon
}

// FilterHistory keeps candles on or after the cutoff day of r.
func FilterHistory(history []Candle, r Range, now time.Time) []Candle {
	from := util.DayKey(r.Cutoff(now))
	out := make([]Candle, 0, len(history))
	for _, c := range history {
		if c.Time >= from {
			out = append(out, c)
		}
	}
	return out
}
