// Package clock provides an injectable monotonic wall clock so the signed
// metadata envelope (pkg/model) does not call time.Now() inline, letting
// tests supply a deterministic, non-decreasing sequence of timestamps.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time in milliseconds since the epoch. Successive
// calls within a single process are guaranteed non-decreasing.
type Clock interface {
	NowMillis() int64
}

// System is the production Clock, backed by time.Now but clamped so it
// never returns a value earlier than its own previous return.
type System struct {
	mu   sync.Mutex
	last int64
}

// NewSystem returns a ready-to-use System clock.
func NewSystem() *System {
	return &System{}
}

// NowMillis returns the current wall-clock time, never earlier than the
// previous call's result.
func (c *System) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}

// Fake is a deterministic Clock for tests: each call advances by Step
// milliseconds (default 1 if zero) from a starting value.
type Fake struct {
	mu      sync.Mutex
	current int64
	Step    int64
}

// NewFake returns a Fake clock starting at startMillis.
func NewFake(startMillis int64) *Fake {
	return &Fake{current: startMillis, Step: 1}
}

// NowMillis returns the next value in the fake sequence.
func (c *Fake) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.Step
	if step == 0 {
		step = 1
	}
	c.current += step
	return c.current
}
