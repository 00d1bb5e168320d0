// Package patrol flies the drone through a fixed list of waypoints while
// a session is scored.
package patrol

import (
	"context"
	"fmt"
	"sync"

	"github.com/dronegrade/harness/internal/protocol"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
)

// Defaults for a patrol run.
const (
	DefaultSpeed             = 5
	DefaultCameraDegrees     = 30
	DefaultCameraSpeedFactor = protocol.DefaultCameraTurnSpeed
)

// Drone is the part of the control API a patrol drives.
type Drone interface {
	TurnCamera(ctx context.Context, degrees, speedMultiplier float64) error
	RotateTowards(ctx context.Context, x, y, z, speed float64) error
	MoveTo(ctx context.Context, x, y, z, speed float64, turnWithMove bool) error
}

// Config describes a patrol.
type Config struct {
	Points        []core.Coordinate
	Speed         float64
	CameraDegrees float64
	// Loop restarts from the first point after the last one.
	Loop bool
}

// Patrol visits waypoints in order until done, stopped, or its context ends.
type Patrol struct {
	cfg    Config
	drone  Drone
	logger zerolog.Logger

	mu      sync.Mutex
	visited int
	cancel  context.CancelFunc
	stopped bool
}

// New creates a Patrol. Zero speeds fall back to the defaults.
func New(cfg Config, drone Drone, logger zerolog.Logger) *Patrol {
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultSpeed
	}
	return &Patrol{
		cfg:    cfg,
		drone:  drone,
		logger: logger.With().Str("component", "patrol").Logger(),
	}
}

// Visited returns how many waypoints have been reached.
func (p *Patrol) Visited() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visited
}

// Stop ends a running patrol after its current command. A patrol stopped
// before Run starts never moves.
func (p *Patrol) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
}

// Run tilts the camera and then rotates toward and moves to each waypoint.
// It returns nil when the route is finished or the patrol was stopped.
func (p *Patrol) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.cancel = cancel
	stopped := p.stopped
	p.mu.Unlock()

	if stopped || len(p.cfg.Points) == 0 {
		return nil
	}
	p.logger.Info().Int("points", len(p.cfg.Points)).Msg("patrol started")

	if p.cfg.CameraDegrees != 0 {
		if err := p.drone.TurnCamera(ctx, p.cfg.CameraDegrees, DefaultCameraSpeedFactor); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tilting camera: %w", err)
		}
	}

	for {
		for i, pt := range p.cfg.Points {
			if ctx.Err() != nil {
				return nil
			}
			if err := p.visit(ctx, pt); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("waypoint %d: %w", i, err)
			}
		}
		if !p.cfg.Loop {
			p.logger.Info().Int("visited", p.Visited()).Msg("patrol finished")
			return nil
		}
	}
}

func (p *Patrol) visit(ctx context.Context, pt core.Coordinate) error {
	p.logger.Debug().Stringer("point", pt).Msg("moving to waypoint")
	if err := p.drone.RotateTowards(ctx, pt.X, pt.Y, pt.Z, protocol.DefaultRotationSpeed); err != nil {
		return fmt.Errorf("rotating towards %s: %w", pt, err)
	}
	if err := p.drone.MoveTo(ctx, pt.X, pt.Y, pt.Z, p.cfg.Speed, false); err != nil {
		return fmt.Errorf("moving to %s: %w", pt, err)
	}
	p.mu.Lock()
	p.visited++
	p.mu.Unlock()
	return nil
}
