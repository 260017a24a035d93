package usecase

import (
	"errors"
	"testing"
	"time"

	"FolioPulse/internal/domain/models"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ts := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	in := []models.Holding{{
		ID: "a", Symbol: "AAPL", Name: "Apple", ISIN: "US0378331005", Qty: 3, AvgPrice: 100,
		CurrentPrice: price(150), LastUpdated: &ts,
		History:       []models.Candle{{Time: "2024-01-31", Value: 149}},
		FetchedRanges: []models.Range{models.Range1Y},
		IsRefreshing:  true,
		Error:         "stale",
	}}
	blob, err := EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeSnapshot(blob, seqIDs())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h := out[0]
	if h.ID != "a" || h.Name != "Apple" || *h.CurrentPrice != 150 || !h.LastUpdated.Equal(ts) {
		t.Fatalf("unexpected holding %+v", h)
	}
	if len(h.History) != 1 || !h.HasFetched(models.Range1Y) {
		t.Fatalf("unexpected market data %+v", h)
	}
	if h.IsRefreshing || h.Error != "" {
		t.Fatalf("transient flags must reset, got %+v", h)
	}
}

func TestEncodeEmptySnapshot(t *testing.T) {
	blob, err := EncodeSnapshot(nil)
	if err != nil || string(blob) != "[]" {
		t.Fatalf("unexpected %q %v", blob, err)
	}
}

func TestDecodeSnapshotNormalises(t *testing.T) {
	blob := []byte(`[{"symbol":"msft","qty":1,"avgPrice":2,"name":7,"currentPrice":"x",
		"history":[{"time":"2024-01-01","value":1},{"time":5,"value":2},{"time":"2024-01-02","value":"3"}],
		"fetchedRanges":["1Y","10Y"]}]`)
	out, err := DecodeSnapshot(blob, seqIDs())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h := out[0]
	if h.ID != "id-1" || h.Symbol != "MSFT" || h.Name != "" || h.CurrentPrice != nil {
		t.Fatalf("unexpected holding %+v", h)
	}
	if len(h.History) != 1 || len(h.FetchedRanges) != 1 {
		t.Fatalf("expected bad entries dropped, got %+v", h)
	}
}

func TestDecodeSnapshotRejects(t *testing.T) {
	cases := []struct {
		name string
		blob string
		want string
	}{
		{"not json", `{`, "Invalid portfolio format: expected an array"},
		{"object", `{"symbol":"A"}`, "Invalid portfolio format: expected an array"},
		{"null", `null`, "Invalid portfolio format: expected an array"},
		{"item not object", `[1]`, "Invalid portfolio item at index 0: expected object"},
		{"missing symbol", `[{"symbol":"A","qty":1},{"qty":1}]`, "Invalid portfolio item at index 1: missing or invalid 'symbol'"},
		{"qty string", `[{"symbol":"A","qty":"1"}]`, "Invalid portfolio item at index 0: 'qty' must be a number"},
		{"avgPrice bool", `[{"symbol":"A","avgPrice":true}]`, "Invalid portfolio item at index 0: 'avgPrice' must be a number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tc.blob), seqIDs())
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if err.Error() != tc.want {
				t.Fatalf("got %q want %q", err.Error(), tc.want)
			}
		})
	}
}
