package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dronegrade/harness/internal/drone"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateDrone struct {
	state core.DroneState
	err   error
}

func (d *stateDrone) QueryState(context.Context) (core.DroneState, error) { return d.state, d.err }
func (d *stateDrone) DestroyActorAtPoint(context.Context, float64, float64) (bool, error) {
	return false, nil
}
func (d *stateDrone) SendGrade(float64) error { return nil }

func TestTrackingDrone_Throttles(t *testing.T) {
	inner := &stateDrone{state: core.DroneState{Position: core.Coordinate{X: 1, Y: 2, Z: 3}}}
	var samples []core.TrackSample
	d := newTrackingDrone(inner, func(s core.TrackSample) { samples = append(samples, s) }, time.Second)

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	for i := 0; i < 25; i++ {
		_, err := d.QueryState(context.Background())
		require.NoError(t, err)
		now = now.Add(100 * time.Millisecond)
	}

	// t=0, 1s, 2s
	require.Len(t, samples, 3)
	assert.Equal(t, core.Coordinate{X: 1, Y: 2, Z: 3}, samples[0].Position)
	assert.Equal(t, time.Second, samples[1].Time.Sub(samples[0].Time))
}

func TestTrackingDrone_SkipsFailedQueries(t *testing.T) {
	inner := &stateDrone{err: errors.New("timeout")}
	calls := 0
	d := newTrackingDrone(inner, func(core.TrackSample) { calls++ }, time.Second)

	_, err := d.QueryState(context.Background())
	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestPrintReport(t *testing.T) {
	actors := drone.NewActorSet()
	actors.Replace([]core.Coordinate{{X: 1}, {X: 2}})
	actors.MarkDestroyed(0)

	var buf bytes.Buffer
	printReport(&buf, &core.Session{ID: "sess-1"}, core.SessionResult{
		Points:     47,
		Detections: 0,
		Elapsed:    3*time.Second + 1234*time.Microsecond,
		Reason:     core.StopCollision,
	}, actors, "/tmp/session.json.gz")

	out := buf.String()
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "collision")
	assert.Contains(t, out, "47.00")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "3.001s")
	assert.Contains(t, out, "Recording: /tmp/session.json.gz")
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, core.ScoreSnapshot{Points: 93.5, Elapsed: 7 * time.Second, Running: true})

	out := buf.String()
	assert.Contains(t, out, "93.50")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "7s")
}
