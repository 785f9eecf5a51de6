package engine

import "sync/atomic"

// Clock is the logical clock that orders firings and observer events.
//
// Every event gets a strictly increasing seq from Next, so traces sort
// the same way on every run and on replay. Wall-clock time is never used
// for ordering.
//
// Clock is safe for concurrent use, so one clock can be shared by an
// engine combining several functions in parallel.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
