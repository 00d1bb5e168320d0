// Package grade runs the scoring loop of a simulation session.
package grade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dronegrade/harness/internal/vision"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
)

// Drone is the part of the control API the scoring loop drives.
type Drone interface {
	QueryState(ctx context.Context) (core.DroneState, error)
	DestroyActorAtPoint(ctx context.Context, x, y float64) (bool, error)
	SendGrade(grade float64) error
}

// Recorder receives the loop's per-second snapshots and score changes.
// Calls are made from the loop goroutine and must not block for long.
type Recorder interface {
	RecordTick(core.ScoreSnapshot)
	RecordEvent(core.ScoreEvent)
}

// Config holds the scoring parameters and loop cadence.
type Config struct {
	core.Grading
	// TickInterval is the pause between iterations.
	TickInterval time.Duration
	// PollTimeout bounds each state query and destroy request. Zero means
	// the loop's context alone bounds them.
	PollTimeout time.Duration
	// SendGrade pushes the point total to the engine once per second.
	SendGrade bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithRecorder adds a recorder. May be given more than once.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) {
		l.recorders = append(l.recorders, r)
	}
}

// Loop owns the score of one session. Only the goroutine running Run
// mutates it; Snapshot may be called from anywhere.
type Loop struct {
	cfg       Config
	drone     Drone
	detectors []vision.Detector
	recorders []Recorder
	clock     Clock
	logger    zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	mu         sync.RWMutex
	points     float64
	detections int
	lastCol    int
	start      time.Time
	lastSecond time.Time
	elapsed    time.Duration
	running    bool
	reason     core.StopReason
	result     core.SessionResult

	stateFailures int
}

// New creates a Loop. Detectors are started by Run and stopped when it ends.
func New(cfg Config, drone Drone, detectors []vision.Detector, logger zerolog.Logger, opts ...Option) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Millisecond
	}
	l := &Loop{
		cfg:       cfg,
		drone:     drone,
		detectors: detectors,
		clock:     realClock{},
		logger:    logger.With().Str("component", "grade").Logger(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		points:    cfg.InitialPoints,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stop asks the loop to end with StopExternalStop. Safe to call repeatedly
// and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Result returns the final accounting. Only meaningful after Done is closed.
func (l *Loop) Result() core.SessionResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.result
}

// Snapshot returns a copy of the current score state.
func (l *Loop) Snapshot() core.ScoreSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked(l.clock.Now())
}

func (l *Loop) snapshotLocked(now time.Time) core.ScoreSnapshot {
	return core.ScoreSnapshot{
		Time:                  now,
		Points:                l.points,
		Elapsed:               l.elapsed,
		Detections:            l.detections,
		LastCollisionObserved: l.lastCol,
		Running:               l.running,
		Reason:                l.reason,
	}
}

// Run drives the session until timeout, collision, Stop, ctx cancellation
// or a fault, then reports the final score and stops the detectors.
func (l *Loop) Run(parent context.Context) core.SessionResult {
	defer close(l.done)

	ctx, cancel := l.stopContext(parent)
	defer cancel()

	now := l.clock.Now()
	l.mu.Lock()
	l.start = now
	l.lastSecond = now
	l.running = true
	l.mu.Unlock()

	l.logger.Info().
		Float64("initialPoints", l.cfg.InitialPoints).
		Dur("duration", l.cfg.Duration).
		Float64("decayPerSecond", l.cfg.DecayPerSecond).
		Float64("collisionPenalty", l.cfg.CollisionPenalty).
		Float64("detectionBonus", l.cfg.DetectionBonus).
		Str("targetLabel", l.cfg.TargetLabel).
		Msg("scoring started")

	for _, d := range l.detectors {
		if d.Running() {
			continue
		}
		if err := d.Start(ctx); err != nil {
			l.logger.Error().Err(err).Str("detector", d.Name()).Msg("detector failed to start")
		}
	}

	reason := l.run(ctx)
	return l.finish(reason)
}

// stopContext derives a context that is also cancelled by Stop, so a
// pending reply wait ends with the session.
func (l *Loop) stopContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-l.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (l *Loop) run(ctx context.Context) core.StopReason {
	for {
		select {
		case <-ctx.Done():
			return core.StopExternalStop
		case <-l.stopCh:
			return core.StopExternalStop
		default:
		}

		reason, stopped := l.safeStep(ctx)
		if stopped {
			return reason
		}

		l.clock.Sleep(ctx, l.cfg.TickInterval)
	}
}

// safeStep runs one iteration, turning a panic into a Fault stop.
func (l *Loop) safeStep(ctx context.Context) (reason core.StopReason, stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Str("panic", fmt.Sprint(r)).Msg("scoring iteration failed")
			reason, stopped = core.StopFault, true
		}
	}()
	return l.step(ctx)
}

func (l *Loop) step(ctx context.Context) (core.StopReason, bool) {
	now := l.clock.Now()

	l.mu.Lock()
	l.elapsed = now.Sub(l.start)
	l.mu.Unlock()

	l.decay(now)

	if l.checkCollision(ctx, now) {
		return core.StopCollision, true
	}

	l.collectDetections(ctx, now)

	if l.cfg.Duration > 0 && now.Sub(l.start) >= l.cfg.Duration {
		return core.StopTimeout, true
	}
	return "", false
}

// decay charges one decay per whole second since the marker and moves the
// marker forward by exactly one second each time.
func (l *Loop) decay(now time.Time) {
	for {
		l.mu.Lock()
		if now.Sub(l.lastSecond) < time.Second {
			l.mu.Unlock()
			return
		}
		l.lastSecond = l.lastSecond.Add(time.Second)
		l.points -= l.cfg.DecayPerSecond
		points := l.points
		snap := l.snapshotLocked(now)
		l.mu.Unlock()

		l.emit(core.ScoreEvent{Time: now, Kind: core.EventDecay, Delta: -l.cfg.DecayPerSecond, Points: points, Elapsed: snap.Elapsed})
		l.tick(snap)
		l.logger.Debug().Float64("points", points).Dur("elapsed", snap.Elapsed).Msg("tick")

		if l.cfg.SendGrade {
			if err := l.drone.SendGrade(points); err != nil {
				l.logger.Warn().Err(err).Msg("sending grade failed")
			}
		}
	}
}

// checkCollision treats any non-zero cumulative count as a collision. A
// failed query is unknown and never counts as collision-free evidence.
func (l *Loop) checkCollision(ctx context.Context, now time.Time) bool {
	pollCtx, cancel := l.pollContext(ctx)
	state, err := l.drone.QueryState(pollCtx)
	cancel()

	if err != nil {
		l.mu.Lock()
		l.stateFailures++
		failures := l.stateFailures
		l.mu.Unlock()
		l.logger.Warn().Err(err).Int("failures", failures).Msg("drone state unknown")
		return false
	}

	if state.CollisionCount == 0 {
		return false
	}

	l.mu.Lock()
	l.points -= l.cfg.CollisionPenalty
	l.lastCol = state.CollisionCount
	points := l.points
	elapsed := l.elapsed
	l.mu.Unlock()

	l.logger.Info().
		Int("collisionCount", state.CollisionCount).
		Float64("penalty", l.cfg.CollisionPenalty).
		Float64("points", points).
		Stringer("position", state.Position).
		Msg("collision detected")
	l.emit(core.ScoreEvent{Time: now, Kind: core.EventCollision, Delta: -l.cfg.CollisionPenalty, Points: points, Elapsed: elapsed})
	return true
}

func (l *Loop) collectDetections(ctx context.Context, now time.Time) {
	for _, d := range l.detectors {
		for _, det := range d.Fetch() {
			if det.Label != l.cfg.TargetLabel {
				continue
			}

			pollCtx, cancel := l.pollContext(ctx)
			destroyed, err := l.drone.DestroyActorAtPoint(pollCtx, det.Center.X, det.Center.Y)
			cancel()
			if err != nil {
				l.logger.Debug().Err(err).Str("detector", d.Name()).Msg("destroy at detection failed")
			}

			l.mu.Lock()
			l.points += l.cfg.DetectionBonus
			l.detections++
			points := l.points
			total := l.detections
			elapsed := l.elapsed
			l.mu.Unlock()

			l.logger.Info().
				Str("detector", d.Name()).
				Str("label", det.Label).
				Float64("confidence", det.Confidence).
				Bool("destroyed", destroyed).
				Int("detections", total).
				Float64("points", points).
				Msg("target detected")
			l.emit(core.ScoreEvent{Time: now, Kind: core.EventDetection, Delta: l.cfg.DetectionBonus, Points: points, Elapsed: elapsed, Label: det.Label})
		}
	}
}

func (l *Loop) finish(reason core.StopReason) core.SessionResult {
	now := l.clock.Now()

	l.mu.Lock()
	l.running = false
	l.reason = reason
	l.result = core.SessionResult{
		EndTime:    now,
		Points:     l.points,
		Detections: l.detections,
		Elapsed:    l.elapsed,
		Reason:     reason,
	}
	result := l.result
	snap := l.snapshotLocked(now)
	l.mu.Unlock()

	l.emit(core.ScoreEvent{Time: now, Kind: core.EventStopped, Points: result.Points, Elapsed: result.Elapsed, Label: string(reason)})
	l.tick(snap)

	if l.cfg.SendGrade {
		if err := l.drone.SendGrade(result.Points); err != nil {
			l.logger.Warn().Err(err).Msg("sending final grade failed")
		}
	}

	l.logger.Info().
		Str("reason", string(reason)).
		Float64("points", result.Points).
		Int("detections", result.Detections).
		Dur("elapsed", result.Elapsed).
		Msg("simulation ended")

	for _, d := range l.detectors {
		d.Stop()
	}
	return result
}

func (l *Loop) emit(e core.ScoreEvent) {
	for _, r := range l.recorders {
		l.record(func() { r.RecordEvent(e) })
	}
}

func (l *Loop) tick(s core.ScoreSnapshot) {
	for _, r := range l.recorders {
		l.record(func() { r.RecordTick(s) })
	}
}

// record isolates recorder failures from the session.
func (l *Loop) record(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Str("panic", fmt.Sprint(r)).Msg("recorder failed")
		}
	}()
	fn()
}

func (l *Loop) pollContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.PollTimeout > 0 {
		return context.WithTimeout(ctx, l.cfg.PollTimeout)
	}
	return context.WithCancel(ctx)
}
