// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a DeterministicClock reports.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultStep is the interval between consecutive Now calls.
const DefaultStep = time.Second

// DeterministicClock is a stepping wall clock for logs under test.
//
// Each Now call advances by a fixed step, so the same sequence of appends
// always receives the same commit times. Pass clock.Now to
// memlog.WithClock or store.WithClock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	ticks int64
	step  time.Duration
}

// NewDeterministicClock creates a clock whose first Now returns Epoch+step.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{step: DefaultStep}
}

// NewDeterministicClockWithStep is NewDeterministicClock with a custom step.
func NewDeterministicClockWithStep(step time.Duration) *DeterministicClock {
	if step <= 0 {
		step = DefaultStep
	}
	return &DeterministicClock{step: step}
}

// Now advances the clock one step and returns the new time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.at(c.ticks)
}

// Current returns the last time handed out, or Epoch before the first Now.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at(c.ticks)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock. After Reset, Now again returns Epoch+step.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}

func (c *DeterministicClock) at(ticks int64) time.Time {
	return Epoch.Add(time.Duration(ticks) * c.step)
}
