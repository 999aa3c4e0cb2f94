// Package watch polls the dnet API in the background and publishes immutable
// snapshots that windows read during Tick.
package watch

import (
	"sync"
	"time"
)

// Snapshot is the latest published value of a Cell. Version increases with
// every publish or failure; zero means nothing was published yet.
type Snapshot[T any] struct {
	Value   T
	Version uint64
	Err     error
	At      time.Time
	// Valid is true once a value has been published. A later failure keeps
	// the last good value and sets Err.
	Valid bool
}

// Fresh reports whether s is newer than the version a reader last saw.
func (s Snapshot[T]) Fresh(seen uint64) bool {
	return s.Version > seen
}

// Cell holds the latest snapshot of one polled resource. Writers replace
// the whole snapshot, so readers never observe partial updates.
type Cell[T any] struct {
	mu   sync.RWMutex
	snap Snapshot[T]
}

// Load returns the current snapshot.
func (c *Cell[T]) Load() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Publish stores a good value and clears any error.
func (c *Cell[T]) Publish(v T, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = Snapshot[T]{Value: v, Version: c.snap.Version + 1, At: at, Valid: true}
}

// Fail records an error and keeps the last good value.
func (c *Cell[T]) Fail(err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Version++
	c.snap.Err = err
	c.snap.At = at
}
