package session

import (
	"context"
	"errors"
	"testing"

	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	calls    []string
	spawnErr error
	sunErr   error
	sun      float64
}

func (e *fakeEngine) SpawnActors(_ context.Context, n int) ([]core.Coordinate, error) {
	e.calls = append(e.calls, "spawn")
	if e.spawnErr != nil {
		return nil, e.spawnErr
	}
	out := make([]core.Coordinate, n)
	for i := range out {
		out[i] = core.Coordinate{X: float64(i)}
	}
	return out, nil
}

func (e *fakeEngine) RequestDaytimeChange(degrees float64) error {
	e.calls = append(e.calls, "daytime")
	e.sun = degrees
	return e.sunErr
}

func TestInit_SpawnsThenSetsDaytime(t *testing.T) {
	engine := &fakeEngine{}
	grading := core.Grading{NumOfPeople: 3, SunAngle: 45}

	s, err := Init(context.Background(), engine, grading, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"spawn", "daytime"}, engine.calls)
	assert.Len(t, s.Actors, 3)
	assert.Equal(t, 45.0, engine.sun)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.StartTime.IsZero())
}

func TestInit_NoPeople(t *testing.T) {
	engine := &fakeEngine{}

	s, err := Init(context.Background(), engine, core.Grading{}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"daytime"}, engine.calls)
	assert.Empty(t, s.Actors)
}

func TestInit_SpawnFailure(t *testing.T) {
	engine := &fakeEngine{spawnErr: errors.New("timeout")}

	_, err := Init(context.Background(), engine, core.Grading{NumOfPeople: 5}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawning 5 actors")
	assert.Equal(t, []string{"spawn"}, engine.calls)
}

func TestInit_DaytimeFailureIgnored(t *testing.T) {
	engine := &fakeEngine{sunErr: errors.New("send failed")}

	s, err := Init(context.Background(), engine, core.Grading{NumOfPeople: 1}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, s.Actors, 1)
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	assert.Nil(t, ctx.Session())
	assert.Nil(t, ctx.Result())

	ctx.Set(&core.Session{ID: "a"})
	assert.Equal(t, "a", ctx.Session().ID)

	ctx.End(core.SessionResult{Points: 42, Reason: core.StopTimeout})
	require.NotNil(t, ctx.Result())
	assert.Equal(t, 42.0, ctx.Result().Points)

	ctx.Set(&core.Session{ID: "b"})
	assert.Nil(t, ctx.Result())
}
