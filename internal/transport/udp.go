package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Config addresses the engine. The peer listens on Port+1.
type Config struct {
	Host       string
	Port       int
	BufferSize int
}

// PeerPort returns the port datagrams are sent to.
func (c Config) PeerPort() int {
	return c.Port + 1
}

// Endpoint owns the inbound socket bound to the local port and the outbound
// socket aimed at the peer.
type Endpoint struct {
	in      *net.UDPConn
	out     *net.UDPConn
	bufSize int

	mu     sync.Mutex
	closed bool
}

// Listen binds the local receive port and opens the send socket. A bind
// failure is returned as is; callers treat it as fatal.
func Listen(cfg Config) (*Endpoint, error) {
	local, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("resolving local address: %w", err)
	}
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.PeerPort())))
	if err != nil {
		return nil, fmt.Errorf("resolving peer address: %w", err)
	}

	in, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", local, err)
	}

	out, err := net.DialUDP("udp", nil, peer)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("opening send socket to %s: %w", peer, err)
	}

	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	return &Endpoint{in: in, out: out, bufSize: size}, nil
}

// LocalAddr returns the bound receive address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.in.LocalAddr()
}

// Send writes payload to the peer. Errors mean the datagram never left; a
// nil error says nothing about delivery.
func (e *Endpoint) Send(payload []byte) error {
	_, err := e.out.Write(payload)
	return err
}

// Receive blocks for the next datagram. Cancelling ctx closes the endpoint,
// since a UDP read has no other way to be interrupted.
func (e *Endpoint) Receive(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			e.Close()
		case <-done:
		}
	}()

	buf := make([]byte, e.bufSize)
	n, _, err := e.in.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrClosed
		}
		return nil, err
	}
	return buf[:n], nil
}

// Close releases both sockets.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.in.Close()
	if outErr := e.out.Close(); err == nil {
		err = outErr
	}
	return err
}
