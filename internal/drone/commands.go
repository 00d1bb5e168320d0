package drone

import (
	"context"

	"github.com/dronegrade/harness/internal/protocol"
	"github.com/dronegrade/harness/pkg/core"
)

// Move sends a primitive control input. No acknowledgement is awaited.
func (c *Control) Move(axis protocol.Axis, amount float64) error {
	return c.fire(protocol.Move(axis, amount))
}

func (c *Control) MoveUp(speed float64) error       { return c.Move(protocol.AxisUp, speed) }
func (c *Control) MoveDown(speed float64) error     { return c.Move(protocol.AxisUp, -speed) }
func (c *Control) MoveForward(speed float64) error  { return c.Move(protocol.AxisPitchForward, speed) }
func (c *Control) MoveBackward(speed float64) error { return c.Move(protocol.AxisPitchForward, -speed) }
func (c *Control) MoveRight(speed float64) error    { return c.Move(protocol.AxisRollRight, speed) }
func (c *Control) MoveLeft(speed float64) error     { return c.Move(protocol.AxisRollRight, -speed) }
func (c *Control) RotateRight(speed float64) error  { return c.Move(protocol.AxisYawRight, speed) }
func (c *Control) RotateLeft(speed float64) error   { return c.Move(protocol.AxisYawRight, -speed) }
func (c *Control) CameraDown(speed float64) error   { return c.Move(protocol.AxisCameraDown, speed) }
func (c *Control) CameraUp(speed float64) error     { return c.Move(protocol.AxisCameraDown, -speed) }

// Hover asks the drone to hold its position.
func (c *Control) Hover() error {
	return c.fire(protocol.Hover())
}

// RotateDegrees yaws the drone by degrees at speed degrees per second.
func (c *Control) RotateDegrees(degrees, speed float64) error {
	return c.fire(protocol.RotateDegrees(degrees, speed))
}

// RotateTowards turns the drone to face (x, y, z) and waits for completion.
func (c *Control) RotateTowards(ctx context.Context, x, y, z, speed float64) error {
	req, err := protocol.TurnTowards(x, y, z, speed)
	reply, err := c.roundTrip(ctx, protocol.PrefixTurnTowards, req, err)
	if err != nil {
		return err
	}
	return protocol.CheckAck("turnTowards", reply)
}

// MoveTo flies the drone to (x, y, z) at speed meters per second and waits
// for completion.
func (c *Control) MoveTo(ctx context.Context, x, y, z, speed float64, turnWithMove bool) error {
	req, err := protocol.Goto(x, y, z, speed, turnWithMove)
	reply, err := c.roundTrip(ctx, protocol.PrefixGoto, req, err)
	if err != nil {
		return err
	}
	return protocol.CheckAck("goto", reply)
}

// TurnCamera pitches the camera by degrees and waits for completion.
func (c *Control) TurnCamera(ctx context.Context, degrees, speedMultiplier float64) error {
	req, err := protocol.TurnCamera(degrees, speedMultiplier)
	reply, err := c.roundTrip(ctx, protocol.PrefixTurnCameraXDeg, req, err)
	if err != nil {
		return err
	}
	return protocol.CheckAck("turnCameraXDeg", reply)
}

// QueryState returns the drone's current position and cumulative collision
// count. A failed query says nothing about collisions.
func (c *Control) QueryState(ctx context.Context) (core.DroneState, error) {
	req, err := protocol.GetDroneState()
	reply, err := c.roundTrip(ctx, protocol.PrefixDroneState, req, err)
	if err != nil {
		return core.DroneState{}, err
	}
	return protocol.ParseDroneState(reply)
}

// DistanceToCameraDirection returns the distance in meters to the nearest
// object along the camera axis.
func (c *Control) DistanceToCameraDirection(ctx context.Context) (float64, error) {
	req, err := protocol.GetDistanceToCameraDirection()
	reply, err := c.roundTrip(ctx, protocol.PrefixDistance, req, err)
	if err != nil {
		return 0, err
	}
	return protocol.ParseDistance(reply)
}

// QueryCameraTarget returns the object the camera points at, or nil when
// nothing is in view.
func (c *Control) QueryCameraTarget(ctx context.Context) (*core.Target, error) {
	req, err := protocol.GetCameraTarget()
	reply, err := c.roundTrip(ctx, protocol.PrefixCameraTarget, req, err)
	if err != nil {
		return nil, err
	}
	return protocol.ParseHitResult(reply)
}

// QueryTargetAtPoint returns the object under the normalized screen point
// (x, y), or nil when nothing is there.
func (c *Control) QueryTargetAtPoint(ctx context.Context, x, y float64) (*core.Target, error) {
	req, err := protocol.GetTargetOfPoint(x, y)
	reply, err := c.roundTrip(ctx, protocol.PrefixTargetOfPoint, req, err)
	if err != nil {
		return nil, err
	}
	return protocol.ParseHitResult(reply)
}

// SpawnActors spawns up to 150 actors and replaces the local actor set with
// the positions the engine reports.
func (c *Control) SpawnActors(ctx context.Context, n int) ([]core.Coordinate, error) {
	req, err := protocol.SpawnActors(n)
	reply, err := c.roundTrip(ctx, protocol.PrefixSpawnActors, req, err)
	if err != nil {
		return nil, err
	}

	coords, err := protocol.ParseSpawnedActors(reply)
	if err != nil {
		return nil, err
	}

	c.actors.Replace(coords)
	c.logger.Info().Int("requested", protocol.ClampSpawn(n)).Int("spawned", len(coords)).Msg("actors spawned")
	return coords, nil
}

// DestroyActorFromCamera destroys the spawned actor under the camera. It
// reports whether a destroy was requested.
func (c *Control) DestroyActorFromCamera(ctx context.Context) (bool, error) {
	target, err := c.QueryCameraTarget(ctx)
	if err != nil {
		return false, err
	}
	return c.destroy(target)
}

// DestroyActorAtPoint destroys the spawned actor under the normalized screen
// point (x, y). It reports whether a destroy was requested; the engine does
// not confirm destruction.
func (c *Control) DestroyActorAtPoint(ctx context.Context, x, y float64) (bool, error) {
	target, err := c.QueryTargetAtPoint(ctx, x, y)
	if err != nil {
		return false, err
	}
	return c.destroy(target)
}

func (c *Control) destroy(target *core.Target) (bool, error) {
	if target == nil {
		return false, nil
	}

	idx := c.actors.IndexOf(target.Position)
	if idx < 0 {
		c.logger.Debug().Str("target", target.DisplayName).Stringer("position", target.Position).Msg("target is not a spawned actor")
		return false, nil
	}

	if err := c.fire(protocol.DestroyActor(idx)); err != nil {
		return false, err
	}
	c.actors.MarkDestroyed(idx)
	c.logger.Debug().Int("index", idx).Str("target", target.DisplayName).Msg("destroy requested")
	return true, nil
}

// RequestDaytimeChange moves the sun by degrees.
func (c *Control) RequestDaytimeChange(degrees float64) error {
	return c.fire(protocol.DaytimeChange(degrees))
}

// SendGrade pushes the current grade to the engine for display.
func (c *Control) SendGrade(grade float64) error {
	return c.fire(protocol.DroneGrade(grade))
}
