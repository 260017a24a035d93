package models

import (
	"testing"
	"time"
)

func TestRangeCutoff(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	cases := map[Range]time.Time{
		Range1D: time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC),
		Range1W: time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC),
		Range1M: now.AddDate(0, -1, 0),
		Range3M: now.AddDate(0, -3, 0),
		Range1Y: time.Date(2023, 3, 31, 12, 0, 0, 0, time.UTC),
		Range5Y: time.Date(2019, 3, 31, 12, 0, 0, 0, time.UTC),
	}
	for r, want := range cases {
		if got := r.Cutoff(now); !got.Equal(want) {
			t.Fatalf("%s: expected %v, got %v", r, want, got)
		}
	}
}

func TestUnknownRangeCutoffIsEpoch(t *testing.T) {
	got := Range("10Y").Cutoff(time.Now())
	if got.Unix() != 0 {
		t.Fatalf("expected epoch, got %v", got)
	}
}

func TestHorizonTokens(t *testing.T) {
	want := map[Range]string{Range1D: "1d", Range1W: "5d", Range1M: "1mo", Range3M: "3mo", Range1Y: "1y", Range5Y: "5y"}
	for r, tok := range want {
		if r.HorizonToken() != tok {
			t.Fatalf("%s: expected %s, got %s", r, tok, r.HorizonToken())
		}
	}
	if Range("bogus").HorizonToken() != "" {
		t.Fatalf("expected empty token for unknown range")
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange(" 3m ")
	if err != nil || r != Range3M {
		t.Fatalf("expected 3M, got %v %v", r, err)
	}
	if _, err := ParseRange("2W"); err == nil {
		t.Fatalf("expected error for unknown range")
	}
}

func TestFilterHistory(t *testing.T) {
	now := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	h := []Candle{{"2024-02-01", 1}, {"2024-02-03", 2}, {"2024-02-09", 3}, {"2024-02-10", 4}}

	// 1W cutoff day is 2024-02-03; a candle on that day is kept
	got := FilterHistory(h, Range1W, now)
	if len(got) != 3 || got[0].Time != "2024-02-03" || got[2].Time != "2024-02-10" {
		t.Fatalf("unexpected 1W filter result %v", got)
	}
	// the day before the cutoff is dropped
	edge := []Candle{{"2024-02-02", 1}, {"2024-02-03", 2}}
	if got := FilterHistory(edge, Range1W, now); len(got) != 1 || got[0].Time != "2024-02-03" {
		t.Fatalf("unexpected cutoff boundary result %v", got)
	}
	if all := FilterHistory(h, Range("x"), now); len(all) != len(h) {
		t.Fatalf("unknown range must not filter, got %v", all)
	}
}
