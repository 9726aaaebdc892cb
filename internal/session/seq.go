package session

import "sync/atomic"

// seqClock hands out strictly increasing sequence numbers. Each optimistic
// patch is stamped with one so a late confirmation can be recognised as
// older than the latest local edit of the same entity.
type seqClock struct {
	seq atomic.Int64
}

// Next returns the next sequence number. The first call returns 1.
func (c *seqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out.
func (c *seqClock) Current() int64 {
	return c.seq.Load()
}
