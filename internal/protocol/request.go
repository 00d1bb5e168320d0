package protocol

import (
	"encoding/json"
	"fmt"
)

// Axis names a fire-and-forget control input. Negative amounts drive the
// opposite direction.
type Axis string

const (
	AxisUp           Axis = "upAmount"
	AxisPitchForward Axis = "pitchForwardAmount"
	AxisRollRight    Axis = "rollRightAmount"
	AxisYawRight     Axis = "yawRightAmount"
	AxisCameraDown   Axis = "cameraDownAmount"
)

// Default speeds used by the engine-facing helpers.
const (
	DefaultRotationSpeed   = 90.0
	DefaultGotoSpeed       = 2.0
	DefaultCameraTurnSpeed = 60.0
)

type controls struct {
	Controls any `json:"controls"`
}

type turnTowards struct {
	X     float64 `json:"turnTowardsXVal"`
	Y     float64 `json:"turnTowardsYVal"`
	Z     float64 `json:"turnTowardsZVal"`
	Speed float64 `json:"turnTowardsSpeed"`
}

type gotoLocation struct {
	X            float64 `json:"gotoXVal"`
	Y            float64 `json:"gotoYVal"`
	Z            float64 `json:"gotoZVal"`
	Speed        float64 `json:"gotoSpeed"`
	TurnWithMove bool    `json:"turnWithMove"`
}

type turnCamera struct {
	Degrees         float64 `json:"degrees"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
}

type rotateDegrees struct {
	Degrees float64 `json:"rotateXDegrees"`
	Speed   float64 `json:"rotationSpeed"`
}

type screenPoint struct {
	X float64 `json:"xVal"`
	Y float64 `json:"yVal"`
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return b, nil
}

// Move encodes a primitive control input.
func Move(axis Axis, amount float64) ([]byte, error) {
	return encode(controls{Controls: map[Axis]float64{axis: amount}})
}

// Hover encodes a request to hold position.
func Hover() ([]byte, error) {
	return encode(controls{Controls: map[string]string{"hover": "true"}})
}

// RotateDegrees encodes a relative yaw rotation.
func RotateDegrees(degrees, speed float64) ([]byte, error) {
	return encode(controls{Controls: rotateDegrees{Degrees: degrees, Speed: speed}})
}

// TurnTowards encodes a rotation to face a location.
func TurnTowards(x, y, z, speed float64) ([]byte, error) {
	return encode(controls{Controls: map[string]turnTowards{
		"turnTowards": {X: x, Y: y, Z: z, Speed: speed},
	}})
}

// Goto encodes a move to a location.
func Goto(x, y, z, speed float64, turnWithMove bool) ([]byte, error) {
	return encode(controls{Controls: map[string]gotoLocation{
		"goto": {X: x, Y: y, Z: z, Speed: speed, TurnWithMove: turnWithMove},
	}})
}

// TurnCamera encodes a camera pitch rotation by a number of degrees.
func TurnCamera(degrees, speedMultiplier float64) ([]byte, error) {
	return encode(controls{Controls: map[string]turnCamera{
		"turnCameraXDeg": {Degrees: degrees, SpeedMultiplier: speedMultiplier},
	}})
}

// GetDroneState encodes a state query.
func GetDroneState() ([]byte, error) {
	return encode(map[string]string{"getDroneState": "true"})
}

// GetDistanceToCameraDirection encodes a distance query along the camera axis.
func GetDistanceToCameraDirection() ([]byte, error) {
	return encode(map[string]string{"getDistanceToCameraDirection": "true"})
}

// GetCameraTarget encodes a query for the object under the camera.
func GetCameraTarget() ([]byte, error) {
	return encode(map[string]string{"getCameraTarget": "true"})
}

// GetTargetOfPoint encodes a query for the object under a normalized screen point.
func GetTargetOfPoint(x, y float64) ([]byte, error) {
	return encode(map[string]screenPoint{"GetTargetOfPoint": {X: x, Y: y}})
}

// SpawnActors encodes a spawn request. n is clamped to [0, MaxSpawnActors].
func SpawnActors(n int) ([]byte, error) {
	return encode(map[string]int{"SpawnXActors": ClampSpawn(n)})
}

// ClampSpawn limits n to what the engine accepts.
func ClampSpawn(n int) int {
	if n > MaxSpawnActors {
		return MaxSpawnActors
	}
	if n < 0 {
		return 0
	}
	return n
}

// DestroyActor encodes a destroy-by-index request.
func DestroyActor(index int) ([]byte, error) {
	return encode(map[string]int{"DestroyActor": index})
}

// DroneGrade encodes the current grade for display in the engine.
func DroneGrade(grade float64) ([]byte, error) {
	return encode(map[string]float64{"droneGrade": grade})
}

// DaytimeChange encodes a request to move the sun by degrees.
func DaytimeChange(degrees float64) ([]byte, error) {
	return encode(map[string]float64{"DaytimeChangeRequested": degrees})
}
