package store

import "sync/atomic"

// Clock hands out logical timestamps for appended actions.
//
// Timestamps are strictly increasing within one store. Replay orders by
// them, so they stand in for wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	ts atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used to resume after reopening an existing log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.ts.Store(start)
	return c
}

// Next returns the next timestamp.
func (c *Clock) Next() int64 {
	return c.ts.Add(1)
}

// Current returns the last timestamp handed out.
func (c *Clock) Current() int64 {
	return c.ts.Load()
}
