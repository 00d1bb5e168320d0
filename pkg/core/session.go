// pkg/core/session.go
package core

import "time"

// StopReason explains why a scoring run ended.
type StopReason string

const (
	StopTimeout      StopReason = "timeout"
	StopCollision    StopReason = "collision"
	StopExternalStop StopReason = "external_stop"
	StopFault        StopReason = "fault"
)

// Grading holds the scoring parameters of a run.
type Grading struct {
	InitialPoints    float64       `json:"initialPoints"`
	DecayPerSecond   float64       `json:"decreasePointsPerSec"`
	CollisionPenalty float64       `json:"pointsDeductedForCollision"`
	DetectionBonus   float64       `json:"addPointsForRecognition"`
	Duration         time.Duration `json:"simulationTime"`
	TargetLabel      string        `json:"targetLabel"`
	NumOfPeople      int           `json:"numOfPeople"`
	SunAngle         float64       `json:"sunAngle"`
}

// Session describes a run as it starts.
type Session struct {
	ID        string       `json:"id"`
	StartTime time.Time    `json:"startTime"`
	Grading   Grading      `json:"grading"`
	Actors    []Coordinate `json:"actors"`
}

// ScoreSnapshot is a read-only copy of the scoring state.
type ScoreSnapshot struct {
	Time                  time.Time     `json:"time"`
	Points                float64       `json:"points"`
	Elapsed               time.Duration `json:"elapsed"`
	Detections            int           `json:"detections"`
	LastCollisionObserved int           `json:"lastCollisionObserved"`
	Running               bool          `json:"running"`
	Reason                StopReason    `json:"reason,omitempty"`
}

// ScoreEventKind classifies a change to the point total.
type ScoreEventKind string

const (
	EventDecay     ScoreEventKind = "decay"
	EventCollision ScoreEventKind = "collision"
	EventDetection ScoreEventKind = "detection"
	EventStopped   ScoreEventKind = "stopped"
)

// ScoreEvent is a single change to the point total.
type ScoreEvent struct {
	Time    time.Time      `json:"time"`
	Kind    ScoreEventKind `json:"kind"`
	Delta   float64        `json:"delta"`
	Points  float64        `json:"points"`
	Elapsed time.Duration  `json:"elapsed"`
	Label   string         `json:"label,omitempty"`
}

// SessionResult is the final accounting of a run.
type SessionResult struct {
	EndTime    time.Time     `json:"endTime"`
	Points     float64       `json:"points"`
	Detections int           `json:"detections"`
	Elapsed    time.Duration `json:"elapsed"`
	Reason     StopReason    `json:"reason"`
}
