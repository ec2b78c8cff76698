package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualWallClock_StartsAtValue(t *testing.T) {
	c := NewManualWallClock(1000)
	assert.Equal(t, int64(1000), c.Millis())
	assert.Equal(t, int64(1000), c.Millis(), "reading does not advance")
}

func TestManualWallClock_AdvanceAndSet(t *testing.T) {
	c := NewManualWallClock(1000)
	c.Advance(25)
	assert.Equal(t, int64(1025), c.Millis())

	c.Set(5)
	assert.Equal(t, int64(5), c.Millis())
}

func TestManualWallClock_ThreadSafe(t *testing.T) {
	c := NewManualWallClock(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(1)
			_ = c.Millis()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), c.Millis())
}
