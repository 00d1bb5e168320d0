// Package convert provides functions to convert core types into GORM models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/internal/model"
	"github.com/dronegrade/harness/pkg/core"
	"gorm.io/datatypes"
)

// CoreToSession converts a starting core.Session to a GORM model.Session.
func CoreToSession(s *core.Session) (model.Session, error) {
	grading, err := json.Marshal(s.Grading)
	if err != nil {
		return model.Session{}, fmt.Errorf("encoding grading: %w", err)
	}
	return model.Session{
		UUID:         s.ID,
		StartTime:    s.StartTime,
		Grading:      datatypes.JSON(grading),
		InitialScore: s.Grading.InitialPoints,
		TargetLabel:  s.Grading.TargetLabel,
		Points:       s.Grading.InitialPoints,
	}, nil
}

// ApplyResult copies the final accounting onto a session row.
func ApplyResult(m *model.Session, r core.SessionResult) {
	m.EndTime = r.EndTime
	m.Points = r.Points
	m.Detections = r.Detections
	m.ElapsedMs = r.Elapsed.Milliseconds()
	m.Reason = string(r.Reason)
}

// CoreToActors converts spawned positions to actor rows. The slice index
// becomes the actor index.
func CoreToActors(sessionID uint, positions []core.Coordinate, g *geo.Georef) []model.Actor {
	actors := make([]model.Actor, len(positions))
	for i, p := range positions {
		actors[i] = model.Actor{
			SessionID:  sessionID,
			ActorIndex: i,
			Position:   g.Point(p),
			Engine:     fmt.Sprintf("%g,%g,%g", p.X, p.Y, p.Z),
		}
	}
	return actors
}

// CoreToScoreTick converts a core.ScoreSnapshot to a GORM model.ScoreTick.
func CoreToScoreTick(sessionID uint, s core.ScoreSnapshot) model.ScoreTick {
	return model.ScoreTick{
		Time:          s.Time,
		SessionID:     sessionID,
		Points:        s.Points,
		ElapsedMs:     s.Elapsed.Milliseconds(),
		Detections:    s.Detections,
		LastCollision: s.LastCollisionObserved,
		Running:       s.Running,
		Reason:        string(s.Reason),
	}
}

// CoreToScoreEvent converts a core.ScoreEvent to a GORM model.ScoreEvent.
func CoreToScoreEvent(sessionID uint, e core.ScoreEvent) model.ScoreEvent {
	return model.ScoreEvent{
		Time:      e.Time,
		SessionID: sessionID,
		Kind:      string(e.Kind),
		Delta:     e.Delta,
		Points:    e.Points,
		ElapsedMs: e.Elapsed.Milliseconds(),
		Label:     e.Label,
	}
}

// CoreToTrackPoint converts a core.TrackSample to a GORM model.TrackPoint.
func CoreToTrackPoint(sessionID uint, s core.TrackSample, g *geo.Georef) model.TrackPoint {
	_, _, alt := g.Mercator(s.Position)
	return model.TrackPoint{
		Time:      s.Time,
		SessionID: sessionID,
		Position:  g.Point(s.Position),
		Altitude:  float32(alt),
	}
}
