package engine

import "sync/atomic"

// Clock is the monotonic logical clock stamping every invocation and
// completion. Logical positions, not wall time, define event order, so
// traces are stable across machines and replays.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
