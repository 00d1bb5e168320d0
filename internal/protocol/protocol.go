// Package protocol implements the text wire format spoken with the engine:
// JSON requests on the way out, prefix-tagged replies on the way back.
package protocol

import (
	"errors"
	"fmt"
)

// Reply prefixes. Each tags exactly one command kind and none may contain
// another, since the router matches by containment.
const (
	PrefixDroneState     = "getDroneState:"
	PrefixDistance       = "getDistanceToCameraDirection:"
	PrefixCameraTarget   = "getCameraTarget:"
	PrefixSpawnActors    = "SpawnXActors:"
	PrefixTargetOfPoint  = "GetTargetOfPoint:"
	PrefixTurnTowards    = "turnTowards:"
	PrefixGoto           = "goto:"
	PrefixTurnCameraXDeg = "turnCameraXDeg:"
)

// Prefixes lists every reply prefix in router registration order.
var Prefixes = []string{
	PrefixDroneState,
	PrefixDistance,
	PrefixCameraTarget,
	PrefixSpawnActors,
	PrefixTargetOfPoint,
	PrefixTurnTowards,
	PrefixGoto,
	PrefixTurnCameraXDeg,
}

// AckDone is the token the engine sends when a blocking command completes.
const AckDone = "Done"

// NoTarget is the payload the engine sends when nothing is in view.
const NoTarget = "None"

// MaxSpawnActors is the largest actor count the engine accepts in one request.
const MaxSpawnActors = 150

// Peer units are centimeters.
const CentimetersPerMeter = 100.0

var (
	// ErrMalformedReply marks a reply payload that could not be parsed.
	ErrMalformedReply = errors.New("malformed reply")
	// ErrUnexpectedAck marks an acknowledgement other than AckDone.
	ErrUnexpectedAck = errors.New("unexpected acknowledgement")
)

// AckError reports a rejected blocking command and the token the engine sent.
type AckError struct {
	Command string
	Token   string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Command, ErrUnexpectedAck, e.Token)
}

func (e *AckError) Unwrap() error {
	return ErrUnexpectedAck
}

func malformed(kind, payload string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrMalformedReply, kind, truncate(payload), cause)
	}
	return fmt.Errorf("%w: %s %q", ErrMalformedReply, kind, truncate(payload))
}

func truncate(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
