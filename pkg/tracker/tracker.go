// Package tracker holds the pending-changes set of a data context and orders
// pending entities for persistence.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/leapentity/pkg/entity"
)

// Entry is one pending entity and the time of its last registration.
type Entry struct {
	Entity  *entity.Entity
	Touched time.Time
}

// Set is a concurrent set of pending entities keyed by instance.
// It is safe for concurrent use without external locking.
type Set struct {
	mu      sync.RWMutex
	pending map[*entity.Entity]time.Time
	now     func() time.Time
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{
		pending: make(map[*entity.Entity]time.Time),
		now:     time.Now,
	}
}

// Touch registers e, or refreshes its last-modified time.
func (s *Set) Touch(e *entity.Entity) {
	if e == nil {
		return
	}
	s.mu.Lock()
	s.pending[e] = s.now()
	s.mu.Unlock()
}

// Remove drops e from the set.
func (s *Set) Remove(e *entity.Entity) {
	s.mu.Lock()
	delete(s.pending, e)
	s.mu.Unlock()
}

// Contains reports whether e is pending.
func (s *Set) Contains(e *entity.Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[e]
	return ok
}

// Len returns the number of pending entities.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Entries returns the pending entities, oldest first.
func (s *Set) Entries() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.pending))
	for e, at := range s.pending {
		entries = append(entries, Entry{Entity: e, Touched: at})
	}
	s.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Touched.Equal(entries[j].Touched) {
			return entries[i].Entity.ID().String() < entries[j].Entity.ID().String()
		}
		return entries[i].Touched.Before(entries[j].Touched)
	})
	return entries
}

// Entities returns the pending entities, oldest first.
func (s *Set) Entities() []*entity.Entity {
	entries := s.Entries()
	out := make([]*entity.Entity, len(entries))
	for i, en := range entries {
		out[i] = en.Entity
	}
	return out
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	s.pending = make(map[*entity.Entity]time.Time)
	s.mu.Unlock()
}

// AnyInTransition reports whether a pending entity is mid-write or mid-persist.
func (s *Set) AnyInTransition() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for e := range s.pending {
		if e.InTransition() {
			return true
		}
	}
	return false
}

// Resolve evicts entities that need no further persistence: Unchanged ones
// and deletes that reached the backend. It returns the number evicted.
func (s *Set) Resolve() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for e := range s.pending {
		if e.State() == entity.Unchanged || e.PersistedDelete() {
			delete(s.pending, e)
			n++
		}
	}
	return n
}
