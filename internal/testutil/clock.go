package testutil

import "sync"

// ManualWallClock is a wall clock that only moves when a test moves it.
//
// Pass its Millis method wherever an engine.WallClock is expected. Setting
// it backwards simulates a wall-clock jump.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualWallClock struct {
	mu     sync.Mutex
	millis int64
}

// NewManualWallClock creates a clock reading start milliseconds.
func NewManualWallClock(start int64) *ManualWallClock {
	return &ManualWallClock{millis: start}
}

// Millis returns the current reading.
func (c *ManualWallClock) Millis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

// Advance moves the clock forward by d milliseconds.
func (c *ManualWallClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis += d
}

// Set moves the clock to an absolute reading, possibly backwards.
func (c *ManualWallClock) Set(millis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis = millis
}
