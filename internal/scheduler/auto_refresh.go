package scheduler

import (
	"sync"
	"time"

	"FolioPulse/pkg/logger"
)

const DefaultIntervalMinutes = 5

// Ticker runs fn every d until the returned stop function is called.
type Ticker interface {
	Every(d time.Duration, fn func()) (stop func())
}

// AutoRefresh triggers the refresh function on a fixed interval while
// enabled. The function is looked up at every tick, so rebinding it never
// restarts the timer.
type AutoRefresh struct {
	ticker Ticker
	log    *logger.Logger
	unit   time.Duration

	mu       sync.Mutex
	fn       func()
	enabled  bool
	interval int
	stop     func()
}

func NewAutoRefresh(ticker Ticker, log *logger.Logger) *AutoRefresh {
	return &AutoRefresh{
		ticker:   ticker,
		log:      log,
		unit:     time.Minute,
		interval: DefaultIntervalMinutes,
	}
}

func (a *AutoRefresh) SetRefreshFunc(fn func()) {
	a.mu.Lock()
	a.fn = fn
	a.mu.Unlock()
}

// SetEnabled arms the timer and triggers once immediately. Disabling stops
// the timer; a tick already delivered is not recalled.
func (a *AutoRefresh) SetEnabled(enabled bool) {
	a.mu.Lock()
	if a.enabled == enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = enabled
	if !enabled {
		a.disarmLocked()
		a.mu.Unlock()
		a.log.Debug("auto refresh disabled")
		return
	}
	a.armLocked()
	a.mu.Unlock()

	a.log.Debug("auto refresh enabled", logger.Int("interval_minutes", a.Interval()))
	a.tick()
}

// SetInterval changes the period. Values below one minute are raised to
// one. A running timer is re-armed without an immediate trigger.
func (a *AutoRefresh) SetInterval(minutes int) {
	minutes = max(1, minutes)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.interval == minutes {
		return
	}
	a.interval = minutes
	if a.enabled {
		a.disarmLocked()
		a.armLocked()
	}
}

func (a *AutoRefresh) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *AutoRefresh) Interval() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interval
}

// Close stops the timer.
func (a *AutoRefresh) Close() {
	a.mu.Lock()
	a.enabled = false
	a.disarmLocked()
	a.mu.Unlock()
}

func (a *AutoRefresh) armLocked() {
	a.stop = a.ticker.Every(time.Duration(a.interval)*a.unit, a.tick)
}

func (a *AutoRefresh) disarmLocked() {
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
}

func (a *AutoRefresh) tick() {
	a.mu.Lock()
	fn := a.fn
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}
