package transport

import (
	"context"
	"sync"
)

// Memory is an in-process Conn. Datagrams written with Inject are returned
// by Receive; datagrams passed to Send are recorded and forwarded to OnSend.
type Memory struct {
	inbox chan []byte
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	sent   [][]byte
	onSend func([]byte)
}

// NewMemory creates an in-process Conn.
func NewMemory() *Memory {
	return &Memory{
		inbox: make(chan []byte, 256),
		done:  make(chan struct{}),
	}
}

// OnSend registers a callback run for every sent datagram, e.g. a scripted peer.
func (m *Memory) OnSend(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSend = fn
}

// Inject delivers a datagram as if it came from the peer.
func (m *Memory) Inject(payload string) {
	select {
	case m.inbox <- []byte(payload):
	case <-m.done:
	}
}

// Sent returns a copy of every datagram sent so far.
func (m *Memory) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, b := range m.sent {
		out[i] = string(b)
	}
	return out
}

func (m *Memory) Send(payload []byte) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	cp := append([]byte(nil), payload...)
	m.mu.Lock()
	m.sent = append(m.sent, cp)
	fn := m.onSend
	m.mu.Unlock()
	if fn != nil {
		fn(cp)
	}
	return nil
}

func (m *Memory) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b := <-m.inbox:
		return b, nil
	case <-m.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
