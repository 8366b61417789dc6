package view

import "sync/atomic"

// Token identifies one list fetch. Tokens increase strictly, so a response
// carrying a token older than the latest issued one is stale.
type Token int64

// Sequencer issues fetch tokens. *Clock is the default.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the default Sequencer: a monotonic counter.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
