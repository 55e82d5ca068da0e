package testutil

import (
	"sync"
	"time"
)

// FixedRunIDGenerator returns the same run identifier every time.
//
// Real runs get time-ordered UUIDs; golden snapshots need a stable id so
// the rendered report is byte-identical across executions. The same
// scenario with the same FixedRunIDGenerator produces identical reports.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a fixed run id generator.
// An empty id defaults to "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// NewID returns the fixed run id.
func (g *FixedRunIDGenerator) NewID() string {
	return g.id
}

// FrozenClock is a thread-safe clock pinned to a fixed instant.
//
// Run records carry creation timestamps; freezing them keeps golden
// report headers deterministic. Advance moves the clock for tests that
// need ordered creation times.
type FrozenClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFrozenClock creates a clock pinned to t. A zero t pins the clock to
// 2024-01-01T00:00:00Z.
func NewFrozenClock(t time.Time) *FrozenClock {
	if t.IsZero() {
		t = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FrozenClock{now: t}
}

// Now returns the pinned instant.
func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FrozenClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
