// Package router demultiplexes engine replies onto per-command reply channels.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dronegrade/harness/internal/channel"
	"github.com/dronegrade/harness/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrPrefixOverlap is returned when a prefix could match the same datagram
// as one already registered.
var ErrPrefixOverlap = errors.New("prefix overlaps a registered prefix")

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Sink is the write side of a reply channel.
type Sink interface {
	channel.Sender[string]
	Len() int
}

// Option configures prefix registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging for every datagram delivered to the prefix.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type route struct {
	prefix string
	sink   Sink
	logged bool
	attr   attribute.KeyValue
}

// Router classifies inbound datagrams by prefix and hands the remainder to
// the matching sink. It is the only writer into the sinks it owns.
type Router struct {
	conn   transport.Conn
	logger Logger

	mu     sync.RWMutex
	routes []route

	// OTEL metrics
	pending   metric.Int64ObservableGauge
	routed    metric.Int64Counter
	dropped   metric.Int64Counter
	unmatched metric.Int64Counter
}

// New creates a Router reading from conn.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(conn transport.Conn, logger Logger) (*Router, error) {
	r := &Router{
		conn:   conn,
		logger: logger,
	}

	m := meter()

	var err error

	r.pending, err = m.Int64ObservableGauge(
		"router.channel.pending",
		metric.WithDescription("Replies delivered but not yet taken"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			for _, rt := range r.routes {
				o.ObserveInt64(r.pending, int64(rt.sink.Len()), metric.WithAttributes(rt.attr))
			}
			return nil
		},
		r.pending,
	)
	if err != nil {
		return nil, fmt.Errorf("registering pending callback: %w", err)
	}

	r.routed, err = m.Int64Counter(
		"router.datagrams.routed",
		metric.WithDescription("Datagrams delivered to a reply channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating routed counter: %w", err)
	}

	r.dropped, err = m.Int64Counter(
		"router.replies.dropped",
		metric.WithDescription("Replies lost because the reply channel was full or overwritten"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	r.unmatched, err = m.Int64Counter(
		"router.datagrams.unmatched",
		metric.WithDescription("Datagrams that matched no registered prefix"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unmatched counter: %w", err)
	}

	return r, nil
}

// Register binds prefix to sink. Prefixes are tried in registration order,
// so a prefix that contains or is contained by an existing one is rejected.
func (r *Router) Register(prefix string, sink Sink, opts ...Option) error {
	if prefix == "" {
		return fmt.Errorf("empty prefix")
	}
	if sink == nil {
		return fmt.Errorf("nil sink for prefix %q", prefix)
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rt := range r.routes {
		if strings.Contains(rt.prefix, prefix) || strings.Contains(prefix, rt.prefix) {
			return fmt.Errorf("%w: %q and %q", ErrPrefixOverlap, prefix, rt.prefix)
		}
	}

	r.routes = append(r.routes, route{
		prefix: prefix,
		sink:   sink,
		logged: cfg.logged,
		attr:   attribute.String("prefix", prefix),
	})
	return nil
}

// HasPrefix returns true if prefix is registered.
func (r *Router) HasPrefix(prefix string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if rt.prefix == prefix {
			return true
		}
	}
	return false
}

// Route delivers one datagram. It reports whether any prefix matched.
func (r *Router) Route(msg string) bool {
	msg = strings.ToValidUTF8(msg, "�")

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		idx := strings.Index(msg, rt.prefix)
		if idx < 0 {
			continue
		}

		payload := msg[idx+len(rt.prefix):]
		ctx := context.Background()
		if !rt.sink.Put(payload) {
			r.dropped.Add(ctx, 1, metric.WithAttributes(rt.attr))
			r.logger.Debug("reply displaced", "prefix", rt.prefix, "pending", rt.sink.Len())
		}
		r.routed.Add(ctx, 1, metric.WithAttributes(rt.attr))
		if rt.logged {
			r.logger.Debug("reply routed", "prefix", rt.prefix, "bytes", len(payload))
		}
		return true
	}

	r.unmatched.Add(context.Background(), 1)
	r.logger.Debug("datagram dropped, no prefix matched", "bytes", len(msg))
	return false
}

// Run drains the transport until ctx is done or the transport is closed.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("router started")
	defer r.logger.Info("router stopped")

	for {
		b, err := r.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			r.logger.Error("receive failed", "error", err)
			continue
		}
		r.Route(string(b))
	}
}
