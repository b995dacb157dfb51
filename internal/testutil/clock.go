package testutil

import (
	"sync"
	"time"
)

// Clock is a thread-safe monotonic logical clock for tests.
//
// Unlike production clocks it can be reset for test reuse, so the same
// scenario runs multiple times with identical seq values.
type Clock struct {
	mu  sync.Mutex
	seq int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments and returns the next sequence number.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset returns the clock to 0.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedTime is the wall-clock instant deterministic fixtures stamp on
// events. Replay never orders by timestamp, so one shared instant is
// enough.
var FixedTime = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
