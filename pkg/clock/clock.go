// Package clock provides the logical time source the ledgers depend on.
package clock

import (
	"sync"
	"time"
)

// SystemClock reads the wall clock in unix seconds.
type SystemClock struct{}

func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (c *SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a hand-driven clock for tests. Time only moves forward.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

func (c *Manual) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d seconds.
func (c *Manual) Advance(d uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set moves the clock to t. Attempts to move backwards are ignored, keeping
// the clock monotonic non-decreasing.
func (c *Manual) Set(t uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}
