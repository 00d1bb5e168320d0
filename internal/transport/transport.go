// Package transport carries text datagrams between the harness and the engine.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Receive after the endpoint has been closed.
var ErrClosed = errors.New("transport closed")

// DefaultBufferSize is the largest datagram read in one Receive. Longer
// datagrams are truncated.
const DefaultBufferSize = 4096

// Conn is a duplex, unordered, lossy datagram link to a single peer.
type Conn interface {
	// Send transmits one datagram. Delivery is not guaranteed.
	Send(payload []byte) error
	// Receive blocks until one datagram arrives or ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
