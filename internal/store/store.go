// Package store provides the normalized in-memory entity store: a map of
// entities keyed by id plus an explicit ordered id list that carries the
// display order (pagination appends, so map iteration order is never used).
package store

import (
	"sync"

	"github.com/matheus3301/optsync/internal/entity"
)

// Store holds one logical list of entities of a single kind.
// Every mutating call bumps a monotonic dirty counter; the snapshotter
// compares it against the last persisted value to debounce saves.
type Store[E entity.Entity] struct {
	mu    sync.RWMutex
	byID  map[string]E
	order []string
	dirty uint64
}

// New creates an empty store.
func New[E entity.Entity]() *Store[E] {
	return &Store[E]{
		byID: make(map[string]E),
	}
}

// Get returns the entity with the given id.
func (s *Store[E]) Get(id string) (E, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

// Upsert inserts or overwrites an entity (idempotent: upserting the same
// value twice leaves the store identical). New ids append to the order.
func (s *Store[E]) Upsert(e E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := e.EntityID()
	if _, exists := s.byID[id]; !exists {
		s.order = append(s.order, id)
	}
	s.byID[id] = e
	s.dirty++
}

// Remove deletes an entity and its order slot. Returns false if absent.
func (s *Store[E]) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; !exists {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.dirty++
	return true
}

// ReplaceAll swaps the entire contents for the given items. Only legal for
// a page-1 refresh: replacing mid-sequence would corrupt scroll position.
func (s *Store[E]) ReplaceAll(items []E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]E, len(items))
	s.order = s.order[:0]
	for _, e := range items {
		id := e.EntityID()
		if _, exists := s.byID[id]; !exists {
			s.order = append(s.order, id)
		}
		s.byID[id] = e
	}
	s.dirty++
}

// Append adds a fetched page to the end of the list. Ids already present
// keep their position and take the incoming value.
func (s *Store[E]) Append(items []E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range items {
		id := e.EntityID()
		if _, exists := s.byID[id]; !exists {
			s.order = append(s.order, id)
		}
		s.byID[id] = e
	}
	s.dirty++
}

// OrderedIDs returns a copy of the display order.
func (s *Store[E]) OrderedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// List returns the entities in display order.
func (s *Store[E]) List() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]E, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Snapshot returns the entities and order under a single lock, for
// serialization.
func (s *Store[E]) Snapshot() ([]E, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]E, 0, len(s.order))
	order := make([]string, len(s.order))
	copy(order, s.order)
	for _, id := range s.order {
		items = append(items, s.byID[id])
	}
	return items, order
}

// Restore seeds the store from a cache snapshot. Order entries without a
// matching entity are dropped. Does not bump the dirty counter: restored
// state is what is already on disk.
func (s *Store[E]) Restore(items []E, order []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]E, len(items))
	for _, e := range items {
		s.byID[e.EntityID()] = e
	}
	s.order = s.order[:0]
	for _, id := range order {
		if _, ok := s.byID[id]; ok {
			s.order = append(s.order, id)
		}
	}
}

// Clear empties the store (context switch).
func (s *Store[E]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]E)
	s.order = s.order[:0]
	s.dirty++
}

// Len returns the number of entities.
func (s *Store[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Dirty returns the monotonic change counter.
func (s *Store[E]) Dirty() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}
