package engine

import (
	"sync/atomic"
	"time"

	"github.com/roach88/triplesync/internal/rdf"
)

// WallClock returns the current wall-clock time in milliseconds.
type WallClock func() int64

// SystemWallClock reads time.Now.
func SystemWallClock() int64 {
	return time.Now().UnixMilli()
}

// Clock is a per-replica hybrid logical clock.
//
// Next returns max(last+1, wall). Readings are strictly increasing even when
// called many times in one millisecond or after the wall clock jumps
// backwards, and they never fall behind the wall clock. Wall readings and
// witnessed timestamps are clamped to rdf.MaxLogicalTime, so last+1 cannot
// overflow; a reading past the ceiling still increases and fails validation
// on commit.
//
// Thread-safety: Clock is safe for concurrent use (atomic compare-and-swap).
type Clock struct {
	last atomic.Int64
	wall WallClock
}

// NewClock creates a clock that has issued nothing yet.
// A nil wall uses SystemWallClock.
func NewClock(wall WallClock) *Clock {
	return NewClockAt(0, wall)
}

// NewClockAt creates a clock that resumes after start.
// Used on Open to continue past the highest persisted timestamp.
func NewClockAt(start rdf.LogicalTime, wall WallClock) *Clock {
	if wall == nil {
		wall = SystemWallClock
	}
	c := &Clock{wall: wall}
	c.last.Store(int64(min(start, rdf.MaxLogicalTime)))
	return c
}

// Next returns the next timestamp.
func (c *Clock) Next() rdf.LogicalTime {
	for {
		last := c.last.Load()
		next := max(last+1, min(c.wall(), int64(rdf.MaxLogicalTime)))
		if c.last.CompareAndSwap(last, next) {
			return rdf.LogicalTime(next)
		}
	}
}

// Current returns the last issued or witnessed timestamp.
func (c *Clock) Current() rdf.LogicalTime {
	return rdf.LogicalTime(c.last.Load())
}

// Witness advances the clock past a timestamp seen in remote data, so the
// next local write outranks everything this replica has already observed.
// Timestamps above rdf.MaxLogicalTime are clamped.
func (c *Clock) Witness(ts rdf.LogicalTime) {
	ts = min(ts, rdf.MaxLogicalTime)
	for {
		last := c.last.Load()
		if int64(ts) <= last || c.last.CompareAndSwap(last, int64(ts)) {
			return
		}
	}
}
