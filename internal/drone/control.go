// Package drone is the synchronous control API for the simulated drone.
//
// Each command kind has its own reply channel fed by the router. Calls of
// the same kind are serialized, since replies carry no request id. Query
// kinds use a single slot so the newest answer wins. Acknowledged commands
// (goto, turn towards, camera turn) and spawn use a FIFO channel. Whatever
// is pending when a call starts answers an earlier request, either one
// abandoned by its caller or a duplicated datagram, and is discarded before
// the new request is sent.
package drone

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dronegrade/harness/internal/channel"
	"github.com/dronegrade/harness/internal/protocol"
	"github.com/dronegrade/harness/internal/router"
	"github.com/dronegrade/harness/internal/transport"
	"github.com/rs/zerolog"
)

// Policies maps each reply prefix to its channel policy.
var Policies = map[string]channel.Policy{
	protocol.PrefixDroneState:     channel.Latest,
	protocol.PrefixDistance:       channel.Latest,
	protocol.PrefixCameraTarget:   channel.Latest,
	protocol.PrefixTargetOfPoint:  channel.Latest,
	protocol.PrefixSpawnActors:    channel.FIFO,
	protocol.PrefixTurnTowards:    channel.FIFO,
	protocol.PrefixGoto:           channel.FIFO,
	protocol.PrefixTurnCameraXDeg: channel.FIFO,
}

// Option configures a Control.
type Option func(*options)

type options struct {
	replyTimeout time.Duration
	fifoSize     int
	logged       bool
}

// WithReplyTimeout bounds every wait for a reply. Zero waits until the
// caller's context is done.
func WithReplyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.replyTimeout = d
	}
}

// WithFIFOSize sets the capacity of FIFO reply channels.
func WithFIFOSize(n int) Option {
	return func(o *options) {
		o.fifoSize = n
	}
}

// WithRouteLogging logs every routed reply at debug level.
func WithRouteLogging() Option {
	return func(o *options) {
		o.logged = true
	}
}

type kind struct {
	prefix string
	ch     channel.Channel[string]
	mu     sync.Mutex
}

// Control translates drone operations into wire commands and waits for the
// matching replies.
type Control struct {
	conn   transport.Conn
	logger zerolog.Logger
	opts   options

	kinds  map[string]*kind
	actors *ActorSet
}

// New creates a Control and registers one reply channel per command kind
// with r.
func New(conn transport.Conn, r *router.Router, logger zerolog.Logger, opts ...Option) (*Control, error) {
	o := options{fifoSize: channel.DefaultFIFOSize}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Control{
		conn:   conn,
		logger: logger,
		opts:   o,
		kinds:  make(map[string]*kind, len(protocol.Prefixes)),
		actors: NewActorSet(),
	}

	var routeOpts []router.Option
	if o.logged {
		routeOpts = append(routeOpts, router.Logged())
	}

	for _, prefix := range protocol.Prefixes {
		policy := Policies[prefix]
		k := &kind{
			prefix: prefix,
			ch:     channel.New[string](policy, o.fifoSize),
		}
		if err := r.Register(prefix, k.ch, routeOpts...); err != nil {
			return nil, fmt.Errorf("registering %s: %w", prefix, err)
		}
		c.kinds[prefix] = k
	}

	return c, nil
}

// Actors returns the spawned actor set.
func (c *Control) Actors() *ActorSet {
	return c.actors
}

// Pending returns the number of unconsumed replies per prefix.
func (c *Control) Pending() map[string]int {
	out := make(map[string]int, len(c.kinds))
	for prefix, k := range c.kinds {
		out[prefix] = k.ch.Len()
	}
	return out
}

// Close closes every reply channel. Blocked callers return channel.ErrClosed.
func (c *Control) Close() {
	for _, k := range c.kinds {
		k.ch.Close()
	}
}

func (c *Control) send(payload []byte) {
	if err := c.conn.Send(payload); err != nil {
		c.logger.Warn().Err(err).Msg("send failed")
	}
}

func (c *Control) fire(payload []byte, err error) error {
	if err != nil {
		return err
	}
	c.send(payload)
	return nil
}

// roundTrip sends req and waits for the reply tagged with prefix.
func (c *Control) roundTrip(ctx context.Context, prefix string, req []byte, err error) (string, error) {
	if err != nil {
		return "", err
	}

	k := c.kinds[prefix]
	k.mu.Lock()
	defer k.mu.Unlock()

	if n := k.ch.Drain(); n > 0 {
		c.logger.Debug().Str("prefix", prefix).Int("count", n).Msg("discarded stale replies")
	}

	if c.opts.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.replyTimeout)
		defer cancel()
	}

	c.send(req)

	reply, err := k.ch.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("waiting for %s reply: %w", prefix, err)
	}
	return reply, nil
}
