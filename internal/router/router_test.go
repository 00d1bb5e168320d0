package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dronegrade/harness/internal/channel"
	"github.com/dronegrade/harness/internal/protocol"
	"github.com/dronegrade/harness/internal/transport"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestRouter(t *testing.T) (*Router, *transport.Memory, *testLogger) {
	logger := &testLogger{}
	conn := transport.NewMemory()

	r, err := New(conn, logger)
	if err != nil {
		t.Fatalf("failed to create router: %v", err)
	}

	return r, conn, logger
}

func take(t *testing.T, ch channel.Receiver[string]) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := ch.Take(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	return v
}

func TestRouter_StripsPrefix(t *testing.T) {
	r, _, _ := newTestRouter(t)

	state := channel.New[string](channel.Latest, 0)
	if err := r.Register(protocol.PrefixDroneState, state); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !r.Route(`getDroneState:{"collisionCount":0}`) {
		t.Fatal("expected datagram to match")
	}

	if got := take(t, state); got != `{"collisionCount":0}` {
		t.Errorf("unexpected payload %q", got)
	}
}

func TestRouter_ContainmentMatch(t *testing.T) {
	r, _, _ := newTestRouter(t)

	ack := channel.New[string](channel.FIFO, 4)
	r.Register(protocol.PrefixGoto, ack)

	// anything before the prefix is ignored
	r.Route("junk goto:Done")

	if got := take(t, ack); got != "Done" {
		t.Errorf("expected Done, got %q", got)
	}
}

func TestRouter_FirstMatchWins(t *testing.T) {
	r, _, _ := newTestRouter(t)

	first := channel.New[string](channel.FIFO, 4)
	second := channel.New[string](channel.FIFO, 4)
	r.Register("alpha:", first)
	r.Register("beta:", second)

	// both prefixes present; registration order decides
	r.Route("beta:x alpha:y")

	if got := take(t, first); got != "y" {
		t.Errorf("expected y, got %q", got)
	}
	if second.Len() != 0 {
		t.Error("second channel should be empty")
	}
}

func TestRouter_UnmatchedDropped(t *testing.T) {
	r, _, logger := newTestRouter(t)

	ack := channel.New[string](channel.FIFO, 4)
	r.Register(protocol.PrefixGoto, ack)

	if r.Route("somethingElse:Done") {
		t.Error("expected no match")
	}
	if ack.Len() != 0 {
		t.Error("unmatched datagram must not be delivered")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) == 0 {
		t.Error("expected drop to be logged")
	}
}

func TestRouter_RejectsOverlap(t *testing.T) {
	r, _, _ := newTestRouter(t)

	if err := r.Register("goto:", channel.New[string](channel.FIFO, 1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []string{"goto:", "xgoto:", "oto:"}
	for _, prefix := range tests {
		err := r.Register(prefix, channel.New[string](channel.FIFO, 1))
		if !errors.Is(err, ErrPrefixOverlap) {
			t.Errorf("%q: expected ErrPrefixOverlap, got %v", prefix, err)
		}
	}

	if err := r.Register("", channel.New[string](channel.FIFO, 1)); err == nil {
		t.Error("expected error for empty prefix")
	}
	if err := r.Register("other:", nil); err == nil {
		t.Error("expected error for nil sink")
	}
}

func TestRouter_AllProtocolPrefixesRegister(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, p := range protocol.Prefixes {
		if err := r.Register(p, channel.New[string](channel.FIFO, 1)); err != nil {
			t.Errorf("register %q: %v", p, err)
		}
	}
	for _, p := range protocol.Prefixes {
		if !r.HasPrefix(p) {
			t.Errorf("expected %q to be registered", p)
		}
	}
	if r.HasPrefix("nope:") {
		t.Error("unexpected prefix")
	}
}

func TestRouter_LatestOverwrites(t *testing.T) {
	r, _, logger := newTestRouter(t)

	state := channel.New[string](channel.Latest, 0)
	r.Register(protocol.PrefixDroneState, state, Logged())

	r.Route("getDroneState:old")
	r.Route("getDroneState:new")

	if got := take(t, state); got != "new" {
		t.Errorf("expected newest reply, got %q", got)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) < 3 {
		t.Errorf("expected routed and displaced log messages, got %d", len(logger.messages))
	}
}

func TestRouter_FIFOQueues(t *testing.T) {
	r, _, _ := newTestRouter(t)

	ack := channel.New[string](channel.FIFO, 4)
	r.Register(protocol.PrefixTurnTowards, ack)

	r.Route("turnTowards:Done")
	r.Route("turnTowards:Blocked")

	if got := take(t, ack); got != "Done" {
		t.Errorf("expected Done first, got %q", got)
	}
	if got := take(t, ack); got != "Blocked" {
		t.Errorf("expected Blocked second, got %q", got)
	}
}

func TestRouter_InvalidUTF8(t *testing.T) {
	r, _, _ := newTestRouter(t)

	ack := channel.New[string](channel.FIFO, 4)
	r.Register(protocol.PrefixGoto, ack)

	r.Route("goto:Do\xffne")

	if got := take(t, ack); got != "Do�ne" {
		t.Errorf("unexpected payload %q", got)
	}
}

func TestRouter_Run(t *testing.T) {
	r, conn, _ := newTestRouter(t)

	ack := channel.New[string](channel.FIFO, 4)
	r.Register(protocol.PrefixGoto, ack)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	conn.Inject("goto:Done")
	if got := take(t, ack); got != "Done" {
		t.Errorf("expected Done, got %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("router did not stop")
	}
}

func TestRouter_RunStopsOnClose(t *testing.T) {
	r, conn, _ := newTestRouter(t)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	conn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("router did not stop")
	}
}
