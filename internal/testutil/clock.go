package testutil

import "sync"

// LogClock stands in for the action log's logical clock in tests.
//
// Entries without an explicit timestamp take Next(). Entries that carry one
// are passed to Observe so later ticks stay after them. Unlike the store's
// clock, LogClock can be reset between runs so that a scenario replays with
// identical timestamps.
type LogClock struct {
	mu sync.Mutex
	ts int64
}

// NewLogClock creates a clock whose first tick is 1.
func NewLogClock() *LogClock {
	return &LogClock{}
}

// Next advances the clock and returns the new timestamp.
func (c *LogClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts++
	return c.ts
}

// Observe moves the clock forward to ts if it is behind. Timestamps may
// repeat in a log, so ts equal to or lower than the current value is kept
// as is.
func (c *LogClock) Observe(ts int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.ts {
		c.ts = ts
	}
	return ts
}

// Current returns the last timestamp handed out.
func (c *LogClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Reset rewinds the clock so the next tick is 1 again.
func (c *LogClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts = 0
}
