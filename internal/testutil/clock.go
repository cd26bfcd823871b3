// Package testutil provides deterministic collaborators for tests: a
// controllable wall clock and a scripted inventory source.
package testutil

import (
	"sync"
	"time"
)

// Clock is a thread-safe controllable wall clock for tests.
//
// Sweep timestamps come from an injected Now function; tests use Clock
// to make first_seen/last_seen/removal_date values exact and to advance
// time between simulated sweeps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at the given instant.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current instant. Pass c.Now as the Now dependency.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
