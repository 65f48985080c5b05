package clock

import (
	"sync"
	"time"
)

// Clock provides time information and tickers.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock provides actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker.
func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// TestClock provides manually controlled time for testing.
// Tickers created from it only fire when Fire is called.
type TestClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*testTicker]struct{}
}

// NewTestClock returns a TestClock set to start.
func NewTestClock(start time.Time) *TestClock {
	return &TestClock{
		now:     start,
		tickers: make(map[*testTicker]struct{}),
	}
}

// Now returns the test time.
func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the test time forward by d.
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the test time to t.
func (c *TestClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// NewTicker returns a ticker that fires only on Fire.
func (c *TestClock) NewTicker(time.Duration) Ticker {
	t := &testTicker{clock: c, ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers[t] = struct{}{}
	c.mu.Unlock()
	return t
}

// Fire delivers the current time to every live ticker. Ticks are dropped
// when a ticker still has an unread tick, like time.Ticker.
func (c *TestClock) Fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t := range c.tickers {
		select {
		case t.ch <- c.now:
		default:
		}
	}
}

// ActiveTickers reports how many tickers have not been stopped.
func (c *TestClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type testTicker struct {
	clock *TestClock
	ch    chan time.Time
}

func (t *testTicker) C() <-chan time.Time { return t.ch }

func (t *testTicker) Stop() {
	t.clock.mu.Lock()
	delete(t.clock.tickers, t)
	t.clock.mu.Unlock()
}
