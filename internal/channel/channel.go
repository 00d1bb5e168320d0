// Package channel provides the reply slots the router fills and callers block on.
package channel

import (
	"context"
	"errors"
)

// ErrClosed is returned by Take once the channel has been closed and drained.
var ErrClosed = errors.New("channel closed")

// Receiver provides blocking read access to a reply slot.
type Receiver[T any] interface {
	// Take blocks until a value is available or ctx is done.
	Take(ctx context.Context) (T, error)
	// Drain discards any pending values and returns how many were dropped.
	Drain() int
	Len() int
}

// Sender provides non-blocking write access to a reply slot.
type Sender[T any] interface {
	// Put stores v without blocking. It returns false when a value was lost,
	// either v itself or an older pending value it displaced.
	Put(v T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Policy selects how a channel behaves when a value arrives before the
// previous one was taken.
type Policy int

const (
	// FIFO queues values up to a fixed capacity and drops the newest on overflow.
	FIFO Policy = iota
	// Latest keeps a single value; a newer value replaces the pending one.
	Latest
)

func (p Policy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case Latest:
		return "latest"
	default:
		return "unknown"
	}
}
