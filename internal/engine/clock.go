package engine

import "sync/atomic"

// Clock is the monotonic logical tick counter for a run.
//
// All appended events are stamped with the clock's current tick; only
// AdvanceTick moves it forward. Wall-clock time is never used for
// ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The engine's single-writer design means only one goroutine typically
// calls Advance().
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a new clock starting at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific tick.
// Used on startup to resume from the last tick recorded in the log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.tick.Store(start)
	return c
}

// Advance moves the clock forward one tick and returns the new tick.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Advance() int64 {
	return c.tick.Add(1)
}

// Current returns the current tick without advancing.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
