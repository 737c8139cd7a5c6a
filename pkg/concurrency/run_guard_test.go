package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunGuard_TryAcquire(t *testing.T) {
	t.Parallel()

	g := NewRunGuard()

	ok, since := g.TryAcquire("store-1")
	require.True(t, ok)
	assert.False(t, since.IsZero())

	// second acquire on the same key fails and reports the holder's time
	ok2, heldSince := g.TryAcquire("store-1")
	assert.False(t, ok2)
	assert.Equal(t, since, heldSince)

	// a different key is independent
	ok3, _ := g.TryAcquire("store-2")
	assert.True(t, ok3)

	g.Release("store-1")
	ok4, _ := g.TryAcquire("store-1")
	assert.True(t, ok4)
}

func TestRunGuard_ReleaseUnheldKey(t *testing.T) {
	t.Parallel()

	g := NewRunGuard()

	assert.NotPanics(t, func() {
		g.Release("never-acquired")
	})
}

func TestRunGuard_Held(t *testing.T) {
	t.Parallel()

	g := NewRunGuard()

	assert.False(t, g.Held("store-1"))

	ok, _ := g.TryAcquire("store-1")
	require.True(t, ok)
	assert.True(t, g.Held("store-1"))

	g.Release("store-1")
	assert.False(t, g.Held("store-1"))
}

func TestRunGuard_ActiveKeys(t *testing.T) {
	t.Parallel()

	g := NewRunGuard()

	g.TryAcquire("a")
	g.TryAcquire("b")

	keys := g.ActiveKeys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "a")
	assert.Contains(t, keys, "b")
	assert.Equal(t, 2, g.Len())

	// the snapshot is a copy
	delete(keys, "a")
	assert.True(t, g.Held("a"))
}

func TestRunGuard_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	g := NewRunGuard()

	const goroutines = 50
	var acquired int32
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.TryAcquire("contended"); ok {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired)
}
