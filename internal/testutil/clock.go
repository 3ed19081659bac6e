package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a resettable journal sequence source for tests.
//
// It satisfies store.SeqSource. Reset lets the same scenario run twice with
// identical seq values, which keeps golden traces byte-identical.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{seq: 0}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0. The next call to Next() returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedTime is the wall clock of tests: 2024-01-02T03:04:05Z.
var FixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// FixedNow returns a now function that always reports t.
func FixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
