package circuit

import "sync/atomic"

// Clock is a monotonic logical clock for event ordering.
//
// Every enqueued event is stamped with a strictly increasing seq number
// from this clock, so enqueue order is explicit in journals and replays
// reproduce it without wall-clock races.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations);
// producers on arbitrary goroutines stamp events while the consumer
// goroutine drains them.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used by replay to resume from the last journaled position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
