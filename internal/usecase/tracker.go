package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"FolioPulse/internal/domain/models"
	drepo "FolioPulse/internal/domain/repository"
	"FolioPulse/pkg/logger"

	"github.com/google/uuid"
)

// AutoRefresher is the periodic trigger. The refresh function is read
// through a cell at every tick, so replacing it never re-arms the timer.
type AutoRefresher interface {
	SetRefreshFunc(fn func())
	SetEnabled(enabled bool)
	SetInterval(minutes int)
	Enabled() bool
	Interval() int
}

const persistTimeout = 5 * time.Second

// AddParams describes a new holding. With Fetch false the holding is
// created from the given fields only and no network call is made.
type AddParams struct {
	Symbol       string
	Qty          float64
	AvgPrice     float64
	Fetch        bool
	LastUpdated  *time.Time
	CurrentPrice *float64
}

// PortfolioView is what clients render.
type PortfolioView struct {
	Snapshot
	Busy          bool         `json:"busy"`
	SelectedRange models.Range `json:"selectedRange"`
}

// AutoRefreshState reports the scheduler settings.
type AutoRefreshState struct {
	Enabled           bool `json:"enabled"`
	IntervalMinutes   int  `json:"intervalMinutes"`
	IntervalIsDefault bool `json:"intervalIsDefault"`
}

// TrackerOption configures Tracker.
type TrackerOption func(*Tracker)

func WithIDGenerator(fn func() string) TrackerOption {
	return func(t *Tracker) {
		t.newID = fn
	}
}

func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithInitialRange(r models.Range) TrackerOption {
	return func(t *Tracker) {
		if r.Valid() {
			t.selected = r
		}
	}
}

// WithResolver resolves free-text identifiers (ISINs) before add fetches.
func WithResolver(r drepo.Resolver) TrackerOption {
	return func(t *Tracker) {
		t.resolver = r
	}
}

// Tracker is the operational surface over the store, the refresher, the
// scheduler and persistence.
type Tracker struct {
	store     *PortfolioStore
	refresher *Refresher
	provider  drepo.QuoteProvider
	resolver  drepo.Resolver
	storage   drepo.Storage
	settings  *Settings
	auto      AutoRefresher
	metrics   drepo.Metrics
	log       *logger.Logger
	newID     func() string
	now       func() time.Time

	mu                sync.RWMutex
	selected          models.Range
	intervalIsDefault bool

	bg          context.Context
	bgCancel    context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
	closeOnce   sync.Once
}

func NewTracker(
	store *PortfolioStore,
	refresher *Refresher,
	provider drepo.QuoteProvider,
	storage drepo.Storage,
	settings *Settings,
	auto AutoRefresher,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...TrackerOption,
) *Tracker {
	bg, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		store:             store,
		refresher:         refresher,
		provider:          provider,
		storage:           storage,
		settings:          settings,
		auto:              auto,
		metrics:           metrics,
		log:               log,
		newID:             uuid.NewString,
		now:               time.Now,
		selected:          models.DefaultRange,
		intervalIsDefault: true,
		bg:                bg,
		bgCancel:          cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.auto.SetRefreshFunc(t.tickFunc(t.selected))
	return t
}

// Load restores the persisted portfolio and interval, then starts
// persisting every store change. A corrupt stored portfolio is logged and
// replaced by an empty one.
func (t *Tracker) Load(ctx context.Context) error {
	var raw json.RawMessage
	found, err := t.storage.Get(ctx, KeyPortfolio, &raw)
	if err != nil {
		t.log.Error("read stored portfolio", logger.Error(err))
	}
	if found {
		items, err := DecodeSnapshot(raw, t.newID)
		if err != nil {
			t.log.Error("stored portfolio is invalid, starting empty", logger.Error(err))
			items = nil
		}
		t.store.ReplaceAll(items)
	}

	// a stored interval overrides whatever the scheduler was built with
	minutes, isDefault := t.settings.Interval(ctx)
	t.mu.Lock()
	t.intervalIsDefault = isDefault
	t.mu.Unlock()
	if !isDefault {
		t.auto.SetInterval(minutes)
	}

	t.unsubscribe = t.store.Subscribe(t.persist)
	t.recordGauges(t.store.Snapshot())

	t.log.Info("portfolio loaded",
		logger.Int("holdings", t.store.Len()),
		logger.Int("interval_minutes", t.auto.Interval()),
	)
	return nil
}

func (t *Tracker) persist(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := t.storage.Set(ctx, KeyPortfolio, snap.Holdings); err != nil {
		t.log.Warn("persist portfolio", logger.Error(err))
	}
	t.recordGauges(snap)
}

func (t *Tracker) recordGauges(snap Snapshot) {
	t.metrics.SetHoldings(len(snap.Holdings))
	t.metrics.SetPortfolioValue(snap.Value)
}

// Subscribe forwards every store change as a view.
func (t *Tracker) Subscribe(fn func(PortfolioView)) func() {
	return t.store.Subscribe(func(s Snapshot) {
		fn(t.viewOf(s))
	})
}

// View returns holdings sorted by field (insertion order when empty).
func (t *Tracker) View(field models.SortField, desc bool) PortfolioView {
	v := t.viewOf(t.store.Snapshot())
	if field != "" {
		models.SortHoldings(v.Holdings, field, desc)
	}
	return v
}

func (t *Tracker) viewOf(s Snapshot) PortfolioView {
	return PortfolioView{Snapshot: s, Busy: t.refresher.Busy(), SelectedRange: t.SelectedRange()}
}

// History returns the aggregated portfolio history filtered to r.
func (t *Tracker) History(r models.Range) []models.Candle {
	return models.FilterHistory(t.store.Snapshot().History, r, t.now())
}

// Breakdown returns per-holding series filtered to r, sorted by symbol.
func (t *Tracker) Breakdown(r models.Range) []models.Series {
	return models.Breakdown(t.store.Holdings(), r, t.now())
}

func (t *Tracker) Holding(id string) (models.Holding, bool) {
	return t.store.Get(id)
}

// AddHolding creates a holding. With p.Fetch the quote is fetched for the
// selected range first and the store is left untouched if that fails.
func (t *Tracker) AddHolding(ctx context.Context, p AddParams) (models.Holding, error) {
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return models.Holding{}, &ValidationError{Index: -1, Field: "symbol", Reason: "symbol is required"}
	}
	if p.Qty < 0 {
		return models.Holding{}, &ValidationError{Index: -1, Field: "qty", Reason: "must not be negative"}
	}
	if p.AvgPrice < 0 {
		return models.Holding{}, &ValidationError{Index: -1, Field: "avgPrice", Reason: "must not be negative"}
	}

	h := models.Holding{
		ID:       t.newID(),
		Symbol:   symbol,
		Qty:      p.Qty,
		AvgPrice: p.AvgPrice,
	}

	if !p.Fetch {
		h.LastUpdated = seedTime(p.LastUpdated)
		if p.CurrentPrice != nil {
			price := *p.CurrentPrice
			h.CurrentPrice = &price
		}
	} else {
		rng := t.SelectedRange()
		if t.resolver != nil {
			resolved, err := t.resolver.ResolveIdentifier(ctx, symbol)
			if err != nil {
				return models.Holding{}, &FetchError{Symbol: symbol, Err: err}
			}
			symbol = resolved
		}
		res, err := t.provider.FetchQuote(ctx, symbol, rng)
		if err != nil {
			t.log.Warn("add holding fetch failed", logger.String("symbol", symbol), logger.Error(err))
			return models.Holding{}, &FetchError{Symbol: symbol, Err: err}
		}
		h.Symbol = symbol
		if res.Quote.Symbol != "" {
			h.Symbol = strings.ToUpper(res.Quote.Symbol)
		}
		h.ApplyQuote(res, rng, t.now())
	}

	if err := t.store.Add(h); err != nil {
		return models.Holding{}, err
	}
	t.log.Info("holding added", logger.String("id", h.ID), logger.String("symbol", h.Symbol), logger.Bool("fetched", p.Fetch))
	return h, nil
}

func (t *Tracker) RemoveHolding(id string) error {
	if !t.store.Remove(id) {
		return ErrHoldingNotFound
	}
	t.log.Info("holding removed", logger.String("id", id))
	return nil
}

// RefreshAll runs a session at the selected range and blocks until it ends.
func (t *Tracker) RefreshAll(ctx context.Context, force bool) RefreshReport {
	return t.refresher.Refresh(ctx, RefreshOptions{Range: t.SelectedRange(), Force: force})
}

// RefreshOne refreshes a single holding at the selected range.
func (t *Tracker) RefreshOne(ctx context.Context, id string) (Outcome, error) {
	return t.refresher.RefreshOne(ctx, id, t.SelectedRange())
}

// RefreshForRange selects r and runs a session for it, cancelling any
// active one.
func (t *Tracker) RefreshForRange(ctx context.Context, r models.Range) (RefreshReport, error) {
	if err := t.SetSelectedRange(r); err != nil {
		return RefreshReport{}, err
	}
	return t.refresher.Refresh(ctx, RefreshOptions{Range: r}), nil
}

// ForceRefreshForRange is RefreshForRange with the fetch cache bypassed.
func (t *Tracker) ForceRefreshForRange(ctx context.Context, r models.Range) (RefreshReport, error) {
	if err := t.SetSelectedRange(r); err != nil {
		return RefreshReport{}, err
	}
	return t.refresher.Refresh(ctx, RefreshOptions{Range: r, Force: true}), nil
}

// StartRefreshAll is RefreshAll without waiting. The session owns the slot
// when this returns, so a following Stop cancels it.
func (t *Tracker) StartRefreshAll(force bool) uint64 {
	return t.startSession(RefreshOptions{Range: t.SelectedRange(), Force: force})
}

// StartRefreshForRange selects r and starts a session for it without waiting.
func (t *Tracker) StartRefreshForRange(r models.Range, force bool) (uint64, error) {
	if err := t.SetSelectedRange(r); err != nil {
		return 0, err
	}
	return t.startSession(RefreshOptions{Range: r, Force: force}), nil
}

func (t *Tracker) startSession(opts RefreshOptions) uint64 {
	p := t.refresher.Begin(t.bg, opts)
	t.Go(func(context.Context) { p.Run() })
	return p.SessionID()
}

// Stop cancels the active session.
func (t *Tracker) Stop() bool {
	stopped := t.refresher.Stop()
	if stopped {
		t.log.Info("refresh session stopped")
	}
	return stopped
}

func (t *Tracker) Busy() bool { return t.refresher.Busy() }

// Go runs fn on the tracker's background context. Work started this way is
// cancelled and awaited by Close.
func (t *Tracker) Go(fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.bg)
	}()
}

func (t *Tracker) SelectedRange() models.Range {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selected
}

// SetSelectedRange changes the range used by refreshes and rebinds the
// scheduler's refresh function without re-arming it.
func (t *Tracker) SetSelectedRange(r models.Range) error {
	if !r.Valid() {
		return InvalidRange(string(r))
	}
	t.mu.Lock()
	t.selected = r
	t.mu.Unlock()
	t.auto.SetRefreshFunc(t.tickFunc(r))
	return nil
}

func (t *Tracker) tickFunc(r models.Range) func() {
	return func() {
		t.startSession(RefreshOptions{Range: r})
	}
}

func (t *Tracker) SetAutoRefresh(enabled bool) {
	t.auto.SetEnabled(enabled)
	t.log.Info("auto refresh toggled", logger.Bool("enabled", enabled), logger.Int("interval_minutes", t.auto.Interval()))
}

// SetAutoRefreshInterval persists minutes and re-times the scheduler.
func (t *Tracker) SetAutoRefreshInterval(ctx context.Context, minutes int) error {
	if minutes < 1 {
		return &ValidationError{Index: -1, Field: "intervalMinutes", Reason: "must be at least 1"}
	}
	t.mu.Lock()
	t.intervalIsDefault = false
	t.mu.Unlock()
	t.settings.SetInterval(ctx, minutes)
	t.auto.SetInterval(minutes)
	return nil
}

func (t *Tracker) AutoRefresh() AutoRefreshState {
	t.mu.RLock()
	isDefault := t.intervalIsDefault
	t.mu.RUnlock()
	return AutoRefreshState{
		Enabled:           t.auto.Enabled(),
		IntervalMinutes:   t.auto.Interval(),
		IntervalIsDefault: isDefault,
	}
}

func (t *Tracker) ExportSnapshot() ([]byte, error) {
	return EncodeSnapshot(t.store.Holdings())
}

// ImportSnapshot validates blob and replaces the whole portfolio. On any
// validation error the store is untouched.
func (t *Tracker) ImportSnapshot(blob []byte) (int, error) {
	items, err := DecodeSnapshot(blob, t.newID)
	if err != nil {
		t.log.Error("import portfolio failed", logger.Error(err))
		return 0, err
	}
	t.store.ReplaceAll(items)
	t.log.Info("portfolio imported", logger.Int("holdings", len(items)))
	return len(items), nil
}

func (t *Tracker) UIState(ctx context.Context) UIState {
	return t.settings.UIState(ctx)
}

func (t *Tracker) PatchUIState(ctx context.Context, patch map[string]json.RawMessage) (UIState, error) {
	return t.settings.PatchUIState(ctx, patch)
}

// Close stops the scheduler and any session, then waits for background work.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		t.auto.SetEnabled(false)
		t.refresher.Stop()
		t.bgCancel()
		t.wg.Wait()
		if t.unsubscribe != nil {
			t.unsubscribe()
		}
	})
	return nil
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
