// Package session prepares the simulated world before scoring starts.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dronegrade/harness/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine is the part of the drone control API used to set up a session.
type Engine interface {
	SpawnActors(ctx context.Context, n int) ([]core.Coordinate, error)
	RequestDaytimeChange(degrees float64) error
}

// Init spawns the configured number of people and then asks for the
// configured sun angle. A spawn failure aborts the session; a failed
// daytime request is only logged.
func Init(ctx context.Context, engine Engine, grading core.Grading, logger zerolog.Logger) (*core.Session, error) {
	s := &core.Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Grading:   grading,
	}
	logger = logger.With().Str("session", s.ID).Logger()

	if grading.NumOfPeople > 0 {
		actors, err := engine.SpawnActors(ctx, grading.NumOfPeople)
		if err != nil {
			return nil, fmt.Errorf("spawning %d actors: %w", grading.NumOfPeople, err)
		}
		s.Actors = actors
	}

	if err := engine.RequestDaytimeChange(grading.SunAngle); err != nil {
		logger.Warn().Err(err).Float64("sunAngle", grading.SunAngle).Msg("daytime change failed")
	}

	logger.Info().
		Int("actors", len(s.Actors)).
		Float64("sunAngle", grading.SunAngle).
		Msg("session initialized")
	return s, nil
}
