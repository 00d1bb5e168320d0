// Package queue provides a mutex-guarded batch that producers append to or
// replace and a single consumer collects in one call.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe batch.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Replace discards whatever is queued and stores a copy of items instead.
func (q *Queue[T]) Replace(items []T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(make([]T, 0, len(items)), items...)
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
