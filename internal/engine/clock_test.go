package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current(), "new clock should start at tick 0")
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, int64(100), c.Current(), "clock should start at specified tick")
}

func TestClock_Advance_Incrementing(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(1), c.Advance())
	assert.Equal(t, int64(2), c.Advance())
	assert.Equal(t, int64(3), c.Advance())

	assert.Equal(t, int64(3), c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 100
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	ticks := make(chan int64, goroutines*callsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				ticks <- c.Advance()
			}
		}()
	}

	wg.Wait()
	close(ticks)

	seen := make(map[int64]bool)
	for tick := range ticks {
		assert.False(t, seen[tick], "tick %d returned twice", tick)
		seen[tick] = true
	}

	expected := goroutines * callsPerGoroutine
	assert.Len(t, seen, expected, "should have %d unique ticks", expected)
}

func TestClock_Current_DoesNotAdvance(t *testing.T) {
	c := NewClock()

	c.Advance()
	c.Advance()

	assert.Equal(t, int64(2), c.Current())
	assert.Equal(t, int64(2), c.Current())
}
