// pkg/core/drone.go
package core

import (
	"fmt"
	"time"
)

// Coordinate is a position in the engine's native units (centimeters).
// Compared by exact equality when matching spawned actors.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%g, %g, %g)", c.X, c.Y, c.Z)
}

// DroneState is a point-in-time snapshot returned by a state query.
// CollisionCount is cumulative on the peer side.
type DroneState struct {
	Position       Coordinate `json:"position"`
	CollisionCount int        `json:"collisionCount"`
}

// Target is the object the peer's camera or ray cast resolves to.
type Target struct {
	DisplayName string     `json:"displayName"`
	ClassName   string     `json:"className"`
	Position    Coordinate `json:"position"`
}

// ScreenPoint is a position in normalized screen space.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is a single object or marker reported by a vision source for one frame.
type Detection struct {
	Label      string      `json:"label"`
	Center     ScreenPoint `json:"center"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Confidence float64     `json:"confidence"`
}

// TrackSample is a drone position observed at a point in time.
type TrackSample struct {
	Time     time.Time  `json:"time"`
	Position Coordinate `json:"position"`
}
