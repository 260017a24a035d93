package scheduler

import (
	"sync"
	"testing"
	"time"

	"FolioPulse/pkg/logger"
)

type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

type manualTicker struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTicker) Every(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, fn: fn}
	m.timers = append(m.timers, t)
	return func() {
		m.mu.Lock()
		t.stopped = true
		m.mu.Unlock()
	}
}

// active returns the single armed timer, or nil.
func (m *manualTicker) active(t *testing.T) *manualTimer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out *manualTimer
	for _, tm := range m.timers {
		if !tm.stopped {
			if out != nil {
				t.Fatalf("more than one timer armed")
			}
			out = tm
		}
	}
	return out
}

func TestAutoRefreshEnableTriggersImmediately(t *testing.T) {
	tk := &manualTicker{}
	a := NewAutoRefresh(tk, logger.Nop())
	calls := 0
	a.SetRefreshFunc(func() { calls++ })

	a.SetEnabled(true)
	if calls != 1 {
		t.Fatalf("expected immediate call, got %d", calls)
	}
	tm := tk.active(t)
	if tm == nil || tm.d != 5*time.Minute {
		t.Fatalf("expected a 5 minute timer, got %+v", tm)
	}
	tm.fn()
	if calls != 2 {
		t.Fatalf("expected tick call, got %d", calls)
	}

	a.SetEnabled(true)
	if calls != 2 || len(tk.timers) != 1 {
		t.Fatalf("re-enabling must be a no-op")
	}
}

func TestAutoRefreshIntervalChangeRearmsWithoutCall(t *testing.T) {
	tk := &manualTicker{}
	a := NewAutoRefresh(tk, logger.Nop())
	calls := 0
	a.SetRefreshFunc(func() { calls++ })
	a.SetEnabled(true)

	a.SetInterval(10)
	if calls != 1 {
		t.Fatalf("interval change must not trigger, got %d calls", calls)
	}
	if tm := tk.active(t); tm.d != 10*time.Minute {
		t.Fatalf("expected 10 minute timer, got %v", tm.d)
	}

	a.SetInterval(0)
	if a.Interval() != 1 || tk.active(t).d != time.Minute {
		t.Fatalf("expected interval clamped to one minute")
	}
}

func TestAutoRefreshRebindKeepsTimer(t *testing.T) {
	tk := &manualTicker{}
	a := NewAutoRefresh(tk, logger.Nop())
	var got []string
	a.SetRefreshFunc(func() { got = append(got, "1M") })
	a.SetEnabled(true)
	tm := tk.active(t)

	a.SetRefreshFunc(func() { got = append(got, "1Y") })
	if tk.active(t) != tm {
		t.Fatalf("rebinding must not re-arm the timer")
	}
	tm.fn()
	if len(got) != 2 || got[1] != "1Y" {
		t.Fatalf("expected tick to use the new function, got %v", got)
	}
}

func TestAutoRefreshDisable(t *testing.T) {
	tk := &manualTicker{}
	a := NewAutoRefresh(tk, logger.Nop())
	a.SetRefreshFunc(func() {})
	a.SetEnabled(true)
	a.SetEnabled(false)
	if tk.active(t) != nil || a.Enabled() {
		t.Fatalf("expected timer stopped")
	}

	// interval changes while disabled only take effect on the next enable
	a.SetInterval(3)
	if tk.active(t) != nil {
		t.Fatalf("expected no timer while disabled")
	}
	a.SetEnabled(true)
	if tk.active(t).d != 3*time.Minute {
		t.Fatalf("expected 3 minute timer")
	}
	a.Close()
	if tk.active(t) != nil {
		t.Fatalf("expected timer stopped on close")
	}
}

func TestCronTickerRunsAndStops(t *testing.T) {
	ct := NewCronTicker(logger.Nop())
	ct.Start()
	defer ct.Stop(t.Context())

	fired := make(chan struct{}, 4)
	stop := ct.Every(time.Second, func() { fired <- struct{}{} })
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never fired")
	}
	stop()
	if len(ct.Cron.Entries()) != 0 {
		t.Fatalf("expected entry removed")
	}
}

// fakeClock fires registered periods as virtual time advances.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	every   time.Duration
	next    time.Duration
	fn      func()
	stopped bool
}

func (c *fakeClock) Every(d time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm := &fakeTimer{every: d, next: c.now + d, fn: fn}
	c.timers = append(c.timers, tm)
	return func() {
		c.mu.Lock()
		tm.stopped = true
		c.mu.Unlock()
	}
}

// Advance moves time forward by d, running every due tick in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, tm := range c.timers {
			if !tm.stopped && tm.next <= end && (due == nil || tm.next < due.next) {
				due = tm
			}
		}
		if due == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		c.now = due.next
		due.next += due.every
		fn := due.fn
		c.mu.Unlock()
		fn()
	}
}

func TestAutoRefreshVirtualTimeScenario(t *testing.T) {
	clock := &fakeClock{}
	a := NewAutoRefresh(clock, logger.Nop())
	a.SetInterval(1)
	calls := 0
	a.SetRefreshFunc(func() { calls++ })

	a.SetEnabled(true)
	if calls != 1 {
		t.Fatalf("expected one immediate call, got %d", calls)
	}

	clock.Advance(61 * time.Second)
	if calls < 2 {
		t.Fatalf("expected at least one tick after 61s, got %d calls", calls)
	}

	// rebinding the function must not re-arm or fire
	seen := calls
	rebound := 0
	a.SetRefreshFunc(func() { rebound++ })
	a.SetInterval(60)
	clock.Advance(500 * time.Millisecond)
	if calls != seen || rebound != 0 {
		t.Fatalf("expected no call after switching to 60 minutes, got %d/%d", calls, rebound)
	}

	a.SetEnabled(false)
	clock.Advance(2000 * time.Millisecond)
	if calls != seen || rebound != 0 {
		t.Fatalf("expected no call while disabled, got %d/%d", calls, rebound)
	}

	a.SetEnabled(true)
	clock.Advance(60 * time.Minute)
	if calls != seen || rebound != 2 {
		t.Fatalf("expected the latest function on enable and tick, got %d/%d", calls, rebound)
	}
}
