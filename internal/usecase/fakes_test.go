package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"FolioPulse/internal/domain/models"
	"FolioPulse/pkg/logger"
)

type fetchCall struct {
	Symbol string
	Range  models.Range
}

// fakeProvider answers from fn and tracks call order and peak concurrency.
type fakeProvider struct {
	fn func(ctx context.Context, symbol string, r models.Range) (*models.QuoteResult, error)

	mu       sync.Mutex
	calls    []fetchCall
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *fakeProvider) FetchQuote(ctx context.Context, symbol string, r models.Range) (*models.QuoteResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fetchCall{Symbol: symbol, Range: r})
	p.mu.Unlock()

	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if p.fn == nil {
		return quoteFor(symbol, 100), nil
	}
	return p.fn(ctx, symbol, r)
}

func (p *fakeProvider) Calls() []fetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]fetchCall, len(p.calls))
	copy(out, p.calls)
	return out
}

func quoteFor(symbol string, price float64) *models.QuoteResult {
	return &models.QuoteResult{
		Quote: models.Quote{Symbol: symbol, Price: price, Currency: "EUR", Name: symbol + " Inc"},
		History: []models.Candle{
			{Time: "2024-01-01", Value: price - 1},
			{Time: "2024-01-02", Value: price},
		},
	}
}

type nopMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *nopMetrics) RecordFetch(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

func (m *nopMetrics) ObserveSession(bool, time.Duration) {}
func (m *nopMetrics) SetHoldings(int)                    {}
func (m *nopMetrics) SetPortfolioValue(float64)          {}

// memStorage is an in-process Storage keeping JSON like the real backends.
type memStorage struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet error
	failSet error
}

func newMemStorage() *memStorage { return &memStorage{data: make(map[string][]byte)} }

func (s *memStorage) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return false, s.failGet
	}
	b, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (s *memStorage) Set(_ context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = b
	return nil
}

func (s *memStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStorage) raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// fakeAuto records scheduler calls without any timer.
type fakeAuto struct {
	mu       sync.Mutex
	fn       func()
	enabled  bool
	interval int
	rebinds  int
}

func (a *fakeAuto) SetRefreshFunc(fn func()) {
	a.mu.Lock()
	a.fn = fn
	a.rebinds++
	a.mu.Unlock()
}

func (a *fakeAuto) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
}

func (a *fakeAuto) SetInterval(minutes int) {
	a.mu.Lock()
	a.interval = minutes
	a.mu.Unlock()
}

func (a *fakeAuto) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *fakeAuto) Interval() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interval
}

func (a *fakeAuto) fire() {
	a.mu.Lock()
	fn := a.fn
	a.mu.Unlock()
	fn()
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func fixedNow() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestRefresher(store *PortfolioStore, p *fakeProvider, opts ...RefresherOption) *Refresher {
	opts = append([]RefresherOption{WithBatchPause(0), WithClock(fixedNow)}, opts...)
	return NewRefresher(store, p, &nopMetrics{}, logger.Nop(), opts...)
}

func seedStore(symbols ...string) *PortfolioStore {
	s := NewPortfolioStore()
	for i, sym := range symbols {
		_ = s.Add(models.Holding{ID: fmt.Sprintf("h%d", i), Symbol: sym, Qty: 1, AvgPrice: 10})
	}
	return s
}
