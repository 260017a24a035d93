package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"FolioPulse/internal/domain/models"
	drepo "FolioPulse/internal/domain/repository"
	"FolioPulse/pkg/logger"
)

const (
	DefaultBatchSize  = 3
	DefaultBatchPause = 500 * time.Millisecond
)

// Outcome is the per-holding result of a refresh.
type Outcome string

const (
	OutcomeFetched   Outcome = "success"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// RefreshOptions selects the target range and whether the fetch cache is bypassed.
type RefreshOptions struct {
	Range models.Range
	Force bool
}

// RefreshReport summarises one session.
type RefreshReport struct {
	SessionID uint64        `json:"sessionId"`
	Range     models.Range  `json:"range"`
	Forced    bool          `json:"forced"`
	Fetched   int           `json:"fetched"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Untouched int           `json:"untouched"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

func (r *RefreshReport) add(o Outcome) {
	switch o {
	case OutcomeFetched:
		r.Fetched++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	case OutcomeCancelled:
		r.Cancelled++
	}
}

// RefresherOption configures Refresher.
type RefresherOption func(*Refresher)

func WithBatchSize(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithBatchPause(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d >= 0 {
			r.pause = d
		}
	}
}

func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.now = now
	}
}

// Refresher runs refresh sessions against the store. Only one full-portfolio
// session is active at a time; single-holding refreshes run beside it.
type Refresher struct {
	store     *PortfolioStore
	provider  drepo.QuoteProvider
	metrics   drepo.Metrics
	log       *logger.Logger
	slot      *SessionSlot
	batchSize int
	pause     time.Duration
	now       func() time.Time

	running atomic.Int32

	// pending counts in-flight claims per holding; IsRefreshing mirrors count > 0.
	pendingMu sync.Mutex
	pending   map[string]int
}

func NewRefresher(store *PortfolioStore, provider drepo.QuoteProvider, metrics drepo.Metrics, log *logger.Logger, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:     store,
		provider:  provider,
		metrics:   metrics,
		log:       log,
		slot:      NewSessionSlot(),
		batchSize: DefaultBatchSize,
		pause:     DefaultBatchPause,
		now:       time.Now,
		pending:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether any full-portfolio session is running.
func (r *Refresher) Busy() bool { return r.running.Load() > 0 }

// Stop cancels the active session. Holdings already in flight settle as
// cancelled; later batches are not started.
func (r *Refresher) Stop() bool { return r.slot.Cancel() }

// Refresh starts a new session, cancelling any active one, and blocks
// until it has been torn down.
func (r *Refresher) Refresh(parent context.Context, opts RefreshOptions) RefreshReport {
	return r.Begin(parent, opts).Run()
}

// PendingRefresh is a session that owns the slot but has not fetched yet.
// Run must be called exactly once.
type PendingRefresh struct {
	r     *Refresher
	sess  *Session
	opts  RefreshOptions
	start time.Time
}

// Begin takes the session slot and marks the refresher busy without
// fetching, so a Stop issued after Begin returns always hits this session.
func (r *Refresher) Begin(parent context.Context, opts RefreshOptions) *PendingRefresh {
	if !opts.Range.Valid() {
		opts.Range = models.DefaultRange
	}
	sess := r.slot.Begin(parent)
	r.running.Add(1)
	r.log.Info("refresh session started",
		logger.Int64("session", int64(sess.ID)),
		logger.String("range", opts.Range.String()),
		logger.Bool("forced", opts.Force),
	)
	return &PendingRefresh{r: r, sess: sess, opts: opts, start: r.now()}
}

// SessionID identifies the session in logs and reports.
func (p *PendingRefresh) SessionID() uint64 { return p.sess.ID }

// Run fetches in batches and tears the session down.
func (p *PendingRefresh) Run() (report RefreshReport) {
	r, sess, opts := p.r, p.sess, p.opts
	report = RefreshReport{SessionID: sess.ID, Range: opts.Range, Forced: opts.Force}
	owned := newClaimSet()

	defer func() {
		if rec := recover(); rec != nil {
			report.Err = &FatalLoopError{Cause: rec}
			r.log.Error("refresh loop panicked",
				logger.Int64("session", int64(sess.ID)),
				logger.Error(report.Err),
				logger.String("stack", string(debug.Stack())),
			)
		}
		for _, id := range owned.drain() {
			r.settle(id, nil)
		}
		r.slot.Release(sess)
		r.running.Add(-1)

		report.Duration = r.now().Sub(p.start)
		r.metrics.ObserveSession(opts.Force, report.Duration)
		r.log.Info("refresh session finished",
			logger.Int64("session", int64(sess.ID)),
			logger.Int("fetched", report.Fetched),
			logger.Int("skipped", report.Skipped),
			logger.Int("failed", report.Failed),
			logger.Int("cancelled", report.Cancelled),
			logger.Int("untouched", report.Untouched),
			logger.Duration("duration_ms", report.Duration),
		)
	}()

	r.runBatches(sess, opts, owned, &report)
	return report
}

func (r *Refresher) runBatches(sess *Session, opts RefreshOptions, owned *claimSet, report *RefreshReport) {
	holdings := r.store.Holdings()
	ids := make([]string, len(holdings))
	for i := range holdings {
		ids[i] = holdings[i].ID
	}

	for start := 0; start < len(ids); start += r.batchSize {
		if sess.Cancelled() {
			report.Untouched += len(ids) - start
			return
		}
		end := min(start+r.batchSize, len(ids))

		claimed := r.claim(ids[start:end])
		owned.add(claimed...)

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, id := range claimed {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				o := r.refreshClaimed(sess.Context(), id, opts, owned)
				mu.Lock()
				report.add(o)
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		if end < len(ids) && !sess.Cancelled() && r.pause > 0 {
			t := time.NewTimer(r.pause)
			select {
			case <-sess.Context().Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

// RefreshOne refreshes a single holding at r, always fetching. It does not
// touch the session slot or the busy indicator.
func (r *Refresher) RefreshOne(ctx context.Context, id string, rng models.Range) (Outcome, error) {
	if !rng.Valid() {
		rng = models.DefaultRange
	}
	claimed := r.claim([]string{id})
	if len(claimed) == 0 {
		return "", ErrHoldingNotFound
	}
	return r.refreshClaimed(ctx, id, RefreshOptions{Range: rng, Force: true}, nil), nil
}

// refreshClaimed fetches one claimed holding and settles the claim exactly once.
func (r *Refresher) refreshClaimed(ctx context.Context, id string, opts RefreshOptions, owned *claimSet) (outcome Outcome) {
	settled := false
	settle := func(fn func(h *models.Holding)) {
		if owned != nil && !owned.remove(id) {
			// teardown already released it
			settled = true
			return
		}
		r.settle(id, fn)
		settled = true
	}
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("unexpected error: %v", rec)
			r.log.Error("holding refresh panicked", logger.String("id", id), logger.String("panic", msg))
			outcome = OutcomeFailed
			if !settled {
				settle(func(h *models.Holding) { h.Error = msg })
			}
		}
		r.metrics.RecordFetch(string(outcome))
	}()

	h, ok := r.store.Get(id)
	if !ok {
		settle(nil)
		return OutcomeSkipped
	}

	if !opts.Force && opts.Range != models.DefaultRange && h.HasFetched(opts.Range) {
		r.log.Debug("holding served from fetch cache",
			logger.String("symbol", h.Symbol),
			logger.String("range", opts.Range.String()),
		)
		settle(nil)
		return OutcomeSkipped
	}

	res, err := r.provider.FetchQuote(ctx, h.Symbol, opts.Range)
	if err != nil {
		if IsCancellation(err) || ctx.Err() != nil {
			settle(nil)
			return OutcomeCancelled
		}
		fe := &FetchError{Symbol: h.Symbol, Err: err}
		r.log.Warn("holding refresh failed", logger.String("symbol", h.Symbol), logger.Error(err))
		settle(func(h *models.Holding) { h.Error = fe.Err.Error() })
		return OutcomeFailed
	}

	now := r.now()
	settle(func(h *models.Holding) { h.ApplyQuote(res, opts.Range, now) })
	return OutcomeFetched
}

// claim marks existing holdings as refreshing and clears their error.
func (r *Refresher) claim(ids []string) []string {
	return r.store.UpdateMany(ids, func(h *models.Holding) {
		r.pendingMu.Lock()
		r.pending[h.ID]++
		r.pendingMu.Unlock()
		h.IsRefreshing = true
		h.Error = ""
	})
}

// settle applies fn and drops one claim on id. IsRefreshing stays true
// only while another claim on the same holding is outstanding.
func (r *Refresher) settle(id string, fn func(h *models.Holding)) {
	applied := r.store.Update(id, func(h *models.Holding) {
		if fn != nil {
			fn(h)
		}
		h.IsRefreshing = r.release(id)
	})
	if !applied {
		r.release(id)
	}
}

func (r *Refresher) release(id string) bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	n := r.pending[id] - 1
	if n <= 0 {
		delete(r.pending, id)
		return false
	}
	r.pending[id] = n
	return true
}

type claimSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newClaimSet() *claimSet { return &claimSet{ids: make(map[string]struct{})} }

func (c *claimSet) add(ids ...string) {
	c.mu.Lock()
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	c.mu.Unlock()
}

func (c *claimSet) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; !ok {
		return false
	}
	delete(c.ids, id)
	return true
}

func (c *claimSet) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	c.ids = make(map[string]struct{})
	return out
}
