package util

import (
	"strconv"
	"time"
)

// DayLayout is the ISO calendar date used as the candle key.
const DayLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, ISO date, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// DayKey formats t as its UTC calendar date.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
