// Package vision adapts external object and marker detectors into pull
// sources of detection batches.
package vision

import (
	"context"
	"fmt"
	"sync"

	"github.com/dronegrade/harness/internal/queue"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
)

// Detector produces detections for the current frame. Each new frame
// replaces the previous batch; Fetch returns the batch and clears it.
type Detector interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Fetch() []core.Detection
}

type parseFunc func(frame []byte) ([]core.Detection, error)

// source is the lifecycle shared by every Feed-backed detector.
type source struct {
	name    string
	feed    Feed
	parse   parseFunc
	results *queue.Queue[core.Detection]
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func newSource(name string, feed Feed, parse parseFunc, logger zerolog.Logger) *source {
	return &source{
		name:    name,
		feed:    feed,
		parse:   parse,
		results: queue.New[core.Detection](),
		logger:  logger.With().Str("detector", name).Logger(),
	}
}

func (s *source) Name() string {
	return s.name
}

// Start subscribes to the feed. It is a no-op if already running. The
// detector stops on its own when ctx is done.
func (s *source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := s.feed.Subscribe(s.onFrame); err != nil {
		return fmt.Errorf("starting %s detector: %w", s.name, err)
	}
	s.running = true
	s.stop = make(chan struct{})

	stop := s.stop
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}()

	s.logger.Info().Msg("detector started")
	return nil
}

func (s *source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	if err := s.feed.Unsubscribe(); err != nil {
		s.logger.Warn().Err(err).Msg("unsubscribe failed")
	}
	s.logger.Info().Msg("detector stopped")
}

func (s *source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *source) Fetch() []core.Detection {
	return s.results.GetAndEmpty()
}

func (s *source) onFrame(frame []byte) {
	detections, err := s.parse(frame)
	if err != nil {
		s.logger.Debug().Err(err).Int("bytes", len(frame)).Msg("unreadable frame")
		return
	}
	s.results.Replace(detections)
}
