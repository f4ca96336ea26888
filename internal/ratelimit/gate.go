// Package ratelimit gates outbound discovery calls to a minimum spacing.
//
// Unlike a token bucket, a Gate never queues or delays: a call that comes too
// early is simply denied and the caller skips it for the current cycle.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between two discovery calls.
const DefaultMinInterval = 2 * time.Second

// Gate remembers when the last gated call was issued.
//
// It is safe for concurrent use.
type Gate struct {
	mu   sync.Mutex
	min  time.Duration
	last time.Time
}

// NewGate returns a gate with the given minimum spacing.
// A non-positive interval falls back to DefaultMinInterval.
func NewGate(minInterval time.Duration) *Gate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Gate{min: minInterval}
}

func (g *Gate) MinInterval() time.Duration { return g.min }

// Allow reports whether a call issued at now respects the minimum spacing.
// It does not record anything; callers that go ahead must call Record.
func (g *Gate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allowLocked(now)
}

// Record marks now as the time of the last issued call.
func (g *Gate) Record(now time.Time) {
	g.mu.Lock()
	g.last = now
	g.mu.Unlock()
}

// Acquire is Allow followed by Record under a single lock.
func (g *Gate) Acquire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.allowLocked(now) {
		return false
	}
	g.last = now
	return true
}

// LastCall returns the last recorded call time (zero if none).
func (g *Gate) LastCall() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *Gate) allowLocked(now time.Time) bool {
	if g.last.IsZero() {
		return true
	}
	return now.Sub(g.last) >= g.min
}
