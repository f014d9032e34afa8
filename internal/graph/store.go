// Package graph owns the shared point collection. Every read and write goes
// through the Store's lock; callers that need a stable view for computation
// take a Snapshot and work on the copy outside the lock.
package graph

import (
	"sync"

	"github.com/hulld/hulld/internal/geometry"
)

type Store struct {
	mu     sync.Mutex
	points []geometry.Point
}

func NewStore() *Store {
	return &Store{}
}

// Reset clears the collection.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = s.points[:0]
}

// Add appends a point. Duplicates are allowed at this layer.
func (s *Store) Add(p geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
}

// Remove deletes the first point within epsilon tolerance of p, in insertion
// order, and reports whether one was found.
func (s *Store) Remove(p geometry.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.points {
		if q.Equal(p) {
			s.points = append(s.points[:i], s.points[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current collection. The copy is safe to read
// and compute on without holding the store's lock.
func (s *Store) Snapshot() []geometry.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geometry.Point(nil), s.points...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}
