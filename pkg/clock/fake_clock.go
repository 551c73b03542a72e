package clock

import (
	"context"
	"time"
)

// FakeClock is a Clock whose notion of "now" is advanced manually. It
// exists to give the health and selector packages a deterministic time
// source for tests such as the breaker-monotonicity and token-bucket
// properties described in spec.md §8.
type FakeClock struct {
	now time.Time
}

// NewFakeClock creates a FakeClock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the clock's current, manually-set time.
func (c *FakeClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// NewContextWithTimeout behaves like context.WithTimeout; FakeClock
// does not virtualize context deadlines, since nothing in this module
// asserts on wall-clock cancellation timing directly.
func (c *FakeClock) NewContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// NewTimer delegates to the real time package.
func (c *FakeClock) NewTimer(d time.Duration) (Timer, <-chan time.Time) {
	t := time.NewTimer(d)
	return t, t.C
}

// NewTicker delegates to the real time package.
func (c *FakeClock) NewTicker(d time.Duration) (Ticker, <-chan time.Time) {
	t := time.NewTicker(d)
	return t, t.C
}
