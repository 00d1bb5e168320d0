// internal/storage/storage.go
package storage

import (
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
)

// Backend is the interface all storage implementations must satisfy.
// Recording is append-only; nothing is read back to resume a run.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(r core.SessionResult) error

	// Recording
	RecordTick(s core.ScoreSnapshot) error
	RecordEvent(e core.ScoreEvent) error
	RecordTrack(t core.TrackSample) error
}

// Exportable is an optional interface for backends that write a file per
// session.
type Exportable interface {
	ExportedFilePath() string
}

// Recorder feeds a Backend from the scoring loop, logging write failures
// instead of returning them.
type Recorder struct {
	backend Backend
	logger  zerolog.Logger
}

// NewRecorder wraps b.
func NewRecorder(b Backend, logger zerolog.Logger) *Recorder {
	return &Recorder{backend: b, logger: logger}
}

// RecordTick stores a snapshot.
func (r *Recorder) RecordTick(s core.ScoreSnapshot) {
	if err := r.backend.RecordTick(s); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record score tick")
	}
}

// RecordEvent stores a score change.
func (r *Recorder) RecordEvent(e core.ScoreEvent) {
	if err := r.backend.RecordEvent(e); err != nil {
		r.logger.Warn().Err(err).Str("kind", string(e.Kind)).Msg("failed to record score event")
	}
}

// RecordTrack stores a drone position.
func (r *Recorder) RecordTrack(t core.TrackSample) {
	if err := r.backend.RecordTrack(t); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record track sample")
	}
}
