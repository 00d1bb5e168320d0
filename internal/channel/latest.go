package channel

import (
	"context"
	"sync"
)

// Single is a one-slot channel where the newest value wins.
type Single[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// NewSingle creates an empty single-slot channel.
func NewSingle[T any]() *Single[T] {
	return &Single[T]{ch: make(chan T, 1)}
}

// Put stores v, replacing any value nobody has taken yet.
func (s *Single[T]) Put(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	replaced := false
	select {
	case <-s.ch:
		replaced = true
	default:
	}
	s.ch <- v
	return !replaced
}

// Take returns the pending value.
func (s *Single[T]) Take(ctx context.Context) (T, error) {
	return take(ctx, s.ch)
}

// Drain discards the pending value, if any.
func (s *Single[T]) Drain() int {
	return drain(s.ch)
}

// Len returns 1 while a value is pending.
func (s *Single[T]) Len() int {
	return len(s.ch)
}

// Close closes the channel.
func (s *Single[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
