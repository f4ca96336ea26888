// Package seen tracks identifiers that have already been notified.
//
// The set is bounded: Cleanup trims it back to half its capacity, keeping the
// most recently inserted ids. Eviction is by insertion order only; a Has hit
// does not refresh an entry.
package seen

import "sync"

// DefaultMaxTracked is the capacity used when none is configured.
const DefaultMaxTracked = 1000

// Set is an insertion-ordered membership set. It is safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	max   int
	index map[string]struct{}
	order []string
}

func New(max int) *Set {
	if max <= 0 {
		max = DefaultMaxTracked
	}
	return &Set{
		max:   max,
		index: make(map[string]struct{}, max),
		order: make([]string, 0, max),
	}
}

func (s *Set) Has(id string) bool {
	s.mu.RLock()
	_, ok := s.index[id]
	s.mu.RUnlock()
	return ok
}

// Add inserts id and reports whether it was new.
func (s *Set) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Cleanup trims the set to the newest max/2 entries once it has grown past
// max. It returns the number of evicted ids.
func (s *Set) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) <= s.max {
		return 0
	}
	keep := s.max / 2
	drop := len(s.order) - keep
	for _, id := range s.order[:drop] {
		delete(s.index, id)
	}
	// Copy so the evicted prefix can be collected.
	kept := make([]string, keep, s.max)
	copy(kept, s.order[drop:])
	s.order = kept
	return drop
}

func (s *Set) Len() int {
	s.mu.RLock()
	n := len(s.order)
	s.mu.RUnlock()
	return n
}

func (s *Set) Max() int { return s.max }

// Snapshot returns the tracked ids, oldest first.
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	out := append([]string(nil), s.order...)
	s.mu.RUnlock()
	return out
}
