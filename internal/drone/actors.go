package drone

import (
	"sync"

	"github.com/dronegrade/harness/pkg/core"
)

// ActorSet holds the positions of the actors spawned this session. Indices
// are the engine's destroy handles and stay stable until the next spawn.
type ActorSet struct {
	mu        sync.RWMutex
	positions []core.Coordinate
	destroyed map[int]bool
}

// NewActorSet creates an empty set.
func NewActorSet() *ActorSet {
	return &ActorSet{destroyed: make(map[int]bool)}
}

// Replace swaps in a freshly spawned set.
func (s *ActorSet) Replace(positions []core.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append([]core.Coordinate(nil), positions...)
	s.destroyed = make(map[int]bool)
}

// IndexOf returns the index of the first actor at exactly pos, or -1.
func (s *ActorSet) IndexOf(pos core.Coordinate) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, p := range s.positions {
		if p == pos {
			return i
		}
	}
	return -1
}

// MarkDestroyed records that a destroy request was sent for index i.
func (s *ActorSet) MarkDestroyed(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.positions) {
		s.destroyed[i] = true
	}
}

// IsDestroyed reports whether a destroy request was sent for index i.
func (s *ActorSet) IsDestroyed(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed[i]
}

// Positions returns a copy of the set.
func (s *ActorSet) Positions() []core.Coordinate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Coordinate(nil), s.positions...)
}

// Len returns the number of spawned actors, destroyed ones included.
func (s *ActorSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// DestroyedCount returns how many distinct actors were asked to be destroyed.
func (s *ActorSet) DestroyedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.destroyed)
}
