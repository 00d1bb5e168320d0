package channel

import (
	"context"
	"sync"
)

// Buffered is a bounded FIFO channel. Values are delivered in arrival order.
type Buffered[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

// NewBuffered creates a FIFO channel holding at most size values.
func NewBuffered[T any](size int) *Buffered[T] {
	if size < 1 {
		size = 1
	}
	return &Buffered[T]{ch: make(chan T, size)}
}

// Put enqueues v, dropping it if the buffer is full or closed.
func (b *Buffered[T]) Put(v T) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Take returns the oldest pending value.
func (b *Buffered[T]) Take(ctx context.Context) (T, error) {
	return take(ctx, b.ch)
}

// Drain discards everything currently queued.
func (b *Buffered[T]) Drain() int {
	return drain(b.ch)
}

// Len returns the number of values currently queued
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Close closes the channel. Pending values can still be taken.
func (b *Buffered[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

func take[T any](ctx context.Context, ch <-chan T) (T, error) {
	var zero T
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func drain[T any](ch <-chan T) int {
	n := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
