package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dronegrade/harness/pkg/core"
)

type droneStateReply struct {
	X              *float64 `json:"positionXVal"`
	Y              *float64 `json:"positionYVal"`
	Z              *float64 `json:"positionZVal"`
	CollisionCount *int     `json:"collisionCount"`
}

// ParseDroneState parses a state reply. Missing fields, a fractional or
// negative collision count, or invalid JSON are reported as ErrMalformedReply.
func ParseDroneState(payload string) (core.DroneState, error) {
	var r droneStateReply
	if err := json.Unmarshal([]byte(clean(payload)), &r); err != nil {
		return core.DroneState{}, malformed("drone state", payload, err)
	}
	if r.X == nil || r.Y == nil || r.Z == nil || r.CollisionCount == nil {
		return core.DroneState{}, malformed("drone state", payload, fmt.Errorf("missing field"))
	}
	if *r.CollisionCount < 0 {
		return core.DroneState{}, malformed("drone state", payload, fmt.Errorf("negative collision count"))
	}
	return core.DroneState{
		Position:       core.Coordinate{X: *r.X, Y: *r.Y, Z: *r.Z},
		CollisionCount: *r.CollisionCount,
	}, nil
}

// FormatDroneState renders a state reply payload as the engine sends it.
func FormatDroneState(s core.DroneState) string {
	b, _ := json.Marshal(droneStateReply{
		X:              &s.Position.X,
		Y:              &s.Position.Y,
		Z:              &s.Position.Z,
		CollisionCount: &s.CollisionCount,
	})
	return string(b)
}

// ParseHitResult parses a target reply of the form
//
//	DisplayName=<name> ClassName=<name> Location=X=<f> Y=<f> Z=<f>
//
// The literal None yields (nil, nil).
func ParseHitResult(payload string) (*core.Target, error) {
	payload = clean(payload)
	if payload == NoTarget {
		return nil, nil
	}

	parts := strings.Fields(payload)
	if len(parts) < 5 {
		return nil, malformed("hit result", payload, fmt.Errorf("expected 5 fields, got %d", len(parts)))
	}

	name, ok := value(parts[0], "DisplayName")
	if !ok {
		return nil, malformed("hit result", payload, fmt.Errorf("missing DisplayName"))
	}
	class, ok := value(parts[1], "ClassName")
	if !ok {
		return nil, malformed("hit result", payload, fmt.Errorf("missing ClassName"))
	}

	loc, ok := value(parts[2], "Location")
	if !ok {
		return nil, malformed("hit result", payload, fmt.Errorf("missing Location"))
	}
	x, err := number(loc, "X")
	if err != nil {
		return nil, malformed("hit result", payload, err)
	}
	y, err := number(parts[3], "Y")
	if err != nil {
		return nil, malformed("hit result", payload, err)
	}
	z, err := number(parts[4], "Z")
	if err != nil {
		return nil, malformed("hit result", payload, err)
	}

	return &core.Target{
		DisplayName: name,
		ClassName:   class,
		Position:    core.Coordinate{X: x, Y: y, Z: z},
	}, nil
}

// FormatHitResult renders a target reply payload; nil renders as None.
func FormatHitResult(t *core.Target) string {
	if t == nil {
		return NoTarget
	}
	return fmt.Sprintf("DisplayName=%s ClassName=%s Location=X=%s Y=%s Z=%s",
		t.DisplayName, t.ClassName,
		formatFloat(t.Position.X), formatFloat(t.Position.Y), formatFloat(t.Position.Z))
}

// ParseDistance parses a distance reply in centimeters and returns meters.
func ParseDistance(payload string) (float64, error) {
	cm, err := strconv.ParseFloat(clean(payload), 64)
	if err != nil {
		return 0, malformed("distance", payload, err)
	}
	return cm / CentimetersPerMeter, nil
}

// ParseSpawnedActors parses a spawn reply holding <i>-XLoc/-YLoc/-ZLoc keys.
func ParseSpawnedActors(payload string) ([]core.Coordinate, error) {
	var raw map[string]float64
	if err := json.Unmarshal([]byte(clean(payload)), &raw); err != nil {
		return nil, malformed("spawned actors", payload, err)
	}

	if len(raw)%3 != 0 {
		return nil, malformed("spawned actors", payload, fmt.Errorf("%d keys is not a whole number of actors", len(raw)))
	}
	n := len(raw) / 3
	coords := make([]core.Coordinate, 0, n)
	for i := 0; i < n; i++ {
		x, okX := raw[fmt.Sprintf("%d-XLoc", i)]
		y, okY := raw[fmt.Sprintf("%d-YLoc", i)]
		z, okZ := raw[fmt.Sprintf("%d-ZLoc", i)]
		if !okX || !okY || !okZ {
			return nil, malformed("spawned actors", payload, fmt.Errorf("missing location for actor %d", i))
		}
		coords = append(coords, core.Coordinate{X: x, Y: y, Z: z})
	}
	return coords, nil
}

// FormatSpawnedActors renders a spawn reply payload.
func FormatSpawnedActors(coords []core.Coordinate) string {
	raw := make(map[string]float64, len(coords)*3)
	for i, c := range coords {
		raw[fmt.Sprintf("%d-XLoc", i)] = c.X
		raw[fmt.Sprintf("%d-YLoc", i)] = c.Y
		raw[fmt.Sprintf("%d-ZLoc", i)] = c.Z
	}
	b, _ := json.Marshal(raw)
	return string(b)
}

// CheckAck returns nil for AckDone and an *AckError naming command otherwise.
func CheckAck(command, payload string) error {
	token := clean(payload)
	if token == AckDone {
		return nil
	}
	return &AckError{Command: command, Token: token}
}

func clean(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func value(field, key string) (string, bool) {
	k, v, ok := strings.Cut(field, "=")
	if !ok || k != key {
		return "", false
	}
	return v, true
}

func number(field, key string) (float64, error) {
	v, ok := value(field, key)
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
