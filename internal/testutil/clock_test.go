package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtZero(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())
}

func TestDeterministicClock_NextIncrementsMonotonically(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(1), clock.Current())

	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(3), clock.Next())
	assert.Equal(t, int64(3), clock.Current())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()

	clock.Next()
	clock.Next()
	clock.Next()
	assert.Equal(t, int64(3), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const goroutines = 100
	const callsPer = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	results := make([][]int64, goroutines)
	for i := 0; i < goroutines; i++ {
		results[i] = make([]int64, callsPer)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPer; j++ {
				results[idx][j] = clock.Next()
			}
		}(i)
	}

	wg.Wait()

	seen := make(map[int64]bool)
	for i := 0; i < goroutines; i++ {
		for j := 0; j < callsPer; j++ {
			val := results[i][j]
			require.False(t, seen[val], "duplicate value %d", val)
			seen[val] = true
		}
	}

	total := goroutines * callsPer
	assert.Len(t, seen, total)
	for i := int64(1); i <= int64(total); i++ {
		assert.True(t, seen[i], "missing value %d", i)
	}
}

func TestDeterministicClock_Deterministic(t *testing.T) {
	a := NewDeterministicClock()
	b := NewDeterministicClock()

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}
