package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Actor{},
	&ScoreTick{},
	&ScoreEvent{},
	&TrackPoint{},
}

// Session is one graded simulation run
type Session struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID      string    `json:"uuid" gorm:"size:36;uniqueIndex"`
	StartTime time.Time `json:"startTime" gorm:"type:timestamptz;"`
	EndTime   time.Time `json:"endTime" gorm:"type:timestamptz;"`

	Grading      datatypes.JSON `json:"grading"` // scoring parameters the run was started with
	InitialScore float64        `json:"initialScore"`
	TargetLabel  string         `json:"targetLabel" gorm:"size:64"`

	Points     float64         `json:"points"`
	Detections int             `json:"detections"`
	ElapsedMs  int64           `json:"elapsedMs"`
	Reason     string          `json:"reason" gorm:"size:32"` // empty while running
	Track      geom.LineString `json:"track"`                 // EPSG:3857 flight path, written at the end
}

func (*Session) TableName() string {
	return "sessions"
}

// Actor is one spawned person. ActorIndex is the handle used to destroy it.
type Actor struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID  uint       `json:"sessionId" gorm:"index:idx_actor_session_id"`
	Session    Session    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ActorIndex int        `json:"actorIndex"`
	Position   geom.Point `json:"position"`
	Engine     string     `json:"engine" gorm:"size:96"` // raw engine coordinate "x,y,z"
}

func (*Actor) TableName() string {
	return "actors"
}

// ScoreTick is the score state sampled once per second
type ScoreTick struct {
	ID            uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time `json:"time" gorm:"type:timestamptz;index:idx_scoretick_time"`
	SessionID     uint      `json:"sessionId" gorm:"index:idx_scoretick_session_id"`
	Session       Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Points        float64   `json:"points"`
	ElapsedMs     int64     `json:"elapsedMs"`
	Detections    int       `json:"detections"`
	LastCollision int       `json:"lastCollision"`
	Running       bool      `json:"running"`
	Reason        string    `json:"reason" gorm:"size:32"`
}

func (*ScoreTick) TableName() string {
	return "score_ticks"
}

// ScoreEvent is a single change to the score
type ScoreEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_scoreevent_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Kind      string    `json:"kind" gorm:"size:16;index:idx_scoreevent_kind"`
	Delta     float64   `json:"delta"`
	Points    float64   `json:"points"`
	ElapsedMs int64     `json:"elapsedMs"`
	Label     string    `json:"label" gorm:"size:64"`
}

func (*ScoreEvent) TableName() string {
	return "score_events"
}

// TrackPoint is one polled drone position
type TrackPoint struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time" gorm:"type:timestamptz;"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_trackpoint_session_id"`
	Session   Session    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Position  geom.Point `json:"position"` // EPSG:3857
	Altitude  float32    `json:"altitude"` // meters above the engine origin
}

func (*TrackPoint) TableName() string {
	return "track_points"
}
