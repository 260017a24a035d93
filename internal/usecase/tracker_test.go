package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"FolioPulse/internal/domain/models"
	"FolioPulse/pkg/logger"
)

type trackerFixture struct {
	tracker  *Tracker
	store    *PortfolioStore
	provider *fakeProvider
	storage  *memStorage
	auto     *fakeAuto
}

func newTrackerFixture(t *testing.T, p *fakeProvider) *trackerFixture {
	t.Helper()
	if p == nil {
		p = &fakeProvider{}
	}
	store := NewPortfolioStore()
	st := newMemStorage()
	auto := &fakeAuto{}
	ref := newTestRefresher(store, p)
	tr := NewTracker(store, ref, p, st, NewSettings(st, logger.Nop()), auto, &nopMetrics{}, logger.Nop(),
		WithIDGenerator(seqIDs()), WithTrackerClock(fixedNow))
	t.Cleanup(func() { _ = tr.Close() })
	return &trackerFixture{tracker: tr, store: store, provider: p, storage: st, auto: auto}
}

func TestAddHoldingWithFetch(t *testing.T) {
	f := newTrackerFixture(t, nil)
	if err := f.tracker.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	h, err := f.tracker.AddHolding(context.Background(), AddParams{Symbol: " aapl ", Qty: 2, AvgPrice: 90, Fetch: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if h.Symbol != "AAPL" || h.CurrentPrice == nil || !h.HasFetched(models.DefaultRange) {
		t.Fatalf("unexpected holding %+v", h)
	}
	calls := f.provider.Calls()
	if len(calls) != 1 || calls[0].Range != models.DefaultRange {
		t.Fatalf("unexpected calls %v", calls)
	}

	var saved []models.Holding
	if err := json.Unmarshal(f.storage.raw(KeyPortfolio), &saved); err != nil || len(saved) != 1 {
		t.Fatalf("expected portfolio persisted, got %s %v", f.storage.raw(KeyPortfolio), err)
	}
}

func TestAddHoldingFetchFailureLeavesStoreUntouched(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, symbol string, r models.Range) (*models.QuoteResult, error) {
		return nil, errors.New("HTTP 404")
	}}
	f := newTrackerFixture(t, p)

	_, err := f.tracker.AddHolding(context.Background(), AddParams{Symbol: "NOPE", Qty: 1, Fetch: true})
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Symbol != "NOPE" {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestAddHoldingWithoutFetch(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ts := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	h, err := f.tracker.AddHolding(context.Background(), AddParams{Symbol: "sap", Qty: 1, AvgPrice: 100, LastUpdated: &ts, CurrentPrice: price(120)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(f.provider.Calls()) != 0 {
		t.Fatalf("expected no fetch")
	}
	if h.Symbol != "SAP" || *h.CurrentPrice != 120 || !h.LastUpdated.Equal(ts) || len(h.FetchedRanges) != 0 {
		t.Fatalf("unexpected holding %+v", h)
	}
}

func TestAddHoldingValidation(t *testing.T) {
	f := newTrackerFixture(t, nil)
	for _, p := range []AddParams{{Symbol: "  "}, {Symbol: "A", Qty: -1}, {Symbol: "A", AvgPrice: -1}} {
		if _, err := f.tracker.AddHolding(context.Background(), p); !IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", p, err)
		}
	}
}

func TestRemoveHolding(t *testing.T) {
	f := newTrackerFixture(t, nil)
	h, _ := f.tracker.AddHolding(context.Background(), AddParams{Symbol: "A", Qty: 1})
	if err := f.tracker.RemoveHolding(h.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.tracker.RemoveHolding(h.ID); !errors.Is(err, ErrHoldingNotFound) {
		t.Fatalf("expected ErrHoldingNotFound, got %v", err)
	}
}

func TestLoadRestoresPortfolioAndInterval(t *testing.T) {
	f := newTrackerFixture(t, nil)
	_ = f.storage.Set(context.Background(), KeyPortfolio, []models.Holding{{ID: "a", Symbol: "A", Qty: 1, IsRefreshing: true}})
	_ = f.storage.Set(context.Background(), KeyIntervalMinutes, 12)

	if err := f.tracker.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	h, ok := f.store.Get("a")
	if !ok || h.IsRefreshing {
		t.Fatalf("unexpected restored holding %+v", h)
	}
	state := f.tracker.AutoRefresh()
	if state.IntervalMinutes != 12 || state.IntervalIsDefault {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestLoadIgnoresCorruptPortfolio(t *testing.T) {
	f := newTrackerFixture(t, nil)
	_ = f.storage.Set(context.Background(), KeyPortfolio, map[string]int{"nope": 1})
	if err := f.tracker.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
	if !f.tracker.AutoRefresh().IntervalIsDefault {
		t.Fatalf("expected default interval")
	}
}

func TestImportReplacesOrRejects(t *testing.T) {
	f := newTrackerFixture(t, nil)
	_, _ = f.tracker.AddHolding(context.Background(), AddParams{Symbol: "OLD", Qty: 1})

	if _, err := f.tracker.ImportSnapshot([]byte(`[{"symbol":"A","qty":1},{"qty":2}]`)); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if hs := f.store.Holdings(); len(hs) != 1 || hs[0].Symbol != "OLD" {
		t.Fatalf("store changed by a failed import: %+v", hs)
	}

	n, err := f.tracker.ImportSnapshot([]byte(`[{"symbol":"a","qty":1},{"symbol":"b","qty":2,"avgPrice":3}]`))
	if err != nil || n != 2 {
		t.Fatalf("import: %d %v", n, err)
	}
	blob, _ := f.tracker.ExportSnapshot()
	again, err := DecodeSnapshot(blob, seqIDs())
	if err != nil || len(again) != 2 || again[1].Symbol != "B" {
		t.Fatalf("export did not round trip: %v %+v", err, again)
	}
}

func TestSelectedRangeRebindsScheduler(t *testing.T) {
	f := newTrackerFixture(t, nil)
	_, _ = f.tracker.AddHolding(context.Background(), AddParams{Symbol: "A", Qty: 1})
	before := f.auto.rebinds

	err := f.tracker.SetSelectedRange(models.Range("10Y"))
	if !IsValidation(err) || !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid range validation error, got %v", err)
	}
	if _, err := f.tracker.StartRefreshForRange(models.Range("10Y"), false); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange from refresh, got %v", err)
	}
	if f.tracker.Busy() {
		t.Fatalf("rejected range must not start a session")
	}
	if err := f.tracker.SetSelectedRange(models.Range5Y); err != nil {
		t.Fatalf("set range: %v", err)
	}
	if f.auto.rebinds != before+1 {
		t.Fatalf("expected one rebind")
	}

	f.auto.fire()
	waitFor(t, func() bool { return len(f.provider.Calls()) == 1 })
	if got := f.provider.Calls()[0].Range; got != models.Range5Y {
		t.Fatalf("tick used %s", got)
	}
}

func TestAutoRefreshIntervalPersisted(t *testing.T) {
	f := newTrackerFixture(t, nil)
	if err := f.tracker.SetAutoRefreshInterval(context.Background(), 0); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := f.tracker.SetAutoRefreshInterval(context.Background(), 10); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	f.tracker.SetAutoRefresh(true)
	state := f.tracker.AutoRefresh()
	if !state.Enabled || state.IntervalMinutes != 10 || state.IntervalIsDefault {
		t.Fatalf("unexpected state %+v", state)
	}
	if string(f.storage.raw(KeyIntervalMinutes)) != "10" {
		t.Fatalf("expected interval stored, got %s", f.storage.raw(KeyIntervalMinutes))
	}
}

func TestForceRefreshForRangeBypassesCache(t *testing.T) {
	f := newTrackerFixture(t, nil)
	f.store.ReplaceAll([]models.Holding{{ID: "a", Symbol: "A", Qty: 1, FetchedRanges: []models.Range{models.Range1Y}}})

	rep, err := f.tracker.RefreshForRange(context.Background(), models.Range1Y)
	if err != nil || rep.Skipped != 1 {
		t.Fatalf("expected cache hit, got %+v %v", rep, err)
	}
	rep, err = f.tracker.ForceRefreshForRange(context.Background(), models.Range1Y)
	if err != nil || rep.Fetched != 1 || !rep.Forced {
		t.Fatalf("expected forced fetch, got %+v %v", rep, err)
	}
	if f.tracker.SelectedRange() != models.Range1Y {
		t.Fatalf("expected selected range updated")
	}
}

func TestViewSortsAndReportsBusy(t *testing.T) {
	f := newTrackerFixture(t, nil)
	f.store.ReplaceAll([]models.Holding{
		{ID: "a", Symbol: "A", Qty: 1, AvgPrice: 5},
		{ID: "b", Symbol: "B", Qty: 1, AvgPrice: 50},
	})
	v := f.tracker.View(models.SortValue, true)
	if v.Holdings[0].ID != "b" || v.Busy || v.SelectedRange != models.DefaultRange {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.Value != 55 {
		t.Fatalf("unexpected totals %+v", v.Totals)
	}
}
