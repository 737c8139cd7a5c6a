// Package concurrency provides small synchronization primitives.
package concurrency

import (
	"sync"
	"time"
)

// RunGuard is a keyed single-flight guard. Each key admits at most one
// holder at a time; a second acquire for the same key fails immediately
// instead of waiting or forcing the first holder out. Different keys are
// fully independent.
type RunGuard struct {
	mu     sync.Mutex
	active map[string]time.Time
}

// NewRunGuard creates a new RunGuard.
func NewRunGuard() *RunGuard {
	return &RunGuard{
		active: make(map[string]time.Time),
	}
}

// TryAcquire attempts to claim the key. It returns true when the key was
// free; the caller must call Release when done. When the key is already
// held it returns false and the time the current holder acquired it.
func (g *RunGuard) TryAcquire(key string) (bool, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if since, held := g.active[key]; held {
		return false, since
	}

	now := time.Now()
	g.active[key] = now
	return true, now
}

// Release frees the key. Releasing a key that is not held is a no-op; the
// release path runs in deferred cleanup where the acquire may have failed.
func (g *RunGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, key)
}

// Held reports whether the key is currently claimed.
func (g *RunGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, held := g.active[key]
	return held
}

// ActiveKeys returns the keys currently claimed with their acquire times.
func (g *RunGuard) ActiveKeys() map[string]time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := make(map[string]time.Time, len(g.active))
	for k, v := range g.active {
		snapshot[k] = v
	}
	return snapshot
}

// Len returns the number of keys currently claimed.
func (g *RunGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.active)
}
