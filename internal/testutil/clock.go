package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe time source for tests. Each call to
// Now returns the start time advanced by one step per earlier call, so
// changelog timestamps are reproducible and strictly increasing.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// Epoch is the default start of a DeterministicClock.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock starting at start. A zero start
// uses Epoch; a zero step uses one second.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	if start.IsZero() {
		start = Epoch
	}
	if step == 0 {
		step = time.Second
	}
	return &DeterministicClock{start: start, step: step}
}

// Now returns the next timestamp.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many timestamps have been handed out.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), Now returns the start time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
