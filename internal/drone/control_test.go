package drone

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dronegrade/harness/internal/protocol"
	"github.com/dronegrade/harness/internal/router"
	"github.com/dronegrade/harness/internal/transport"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// fakeEngine answers requests the way the simulation engine does.
type fakeEngine struct {
	conn *transport.Memory

	mu          sync.Mutex
	state       core.DroneState
	stateRaw    string
	distanceCm  string
	target      *core.Target
	spawnLimit  int
	ack         string
	silent      map[string]bool
	gotoDelay   time.Duration
	lastSpawned int
}

func (e *fakeEngine) handle(b []byte) {
	var req map[string]json.RawMessage
	if err := json.Unmarshal(b, &req); err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	reply := func(prefix, payload string) {
		if e.silent[prefix] {
			return
		}
		e.conn.Inject(prefix + payload)
	}

	switch {
	case req["getDroneState"] != nil:
		if e.stateRaw != "" {
			reply(protocol.PrefixDroneState, e.stateRaw)
		} else {
			reply(protocol.PrefixDroneState, protocol.FormatDroneState(e.state))
		}
	case req["getDistanceToCameraDirection"] != nil:
		reply(protocol.PrefixDistance, e.distanceCm)
	case req["getCameraTarget"] != nil:
		reply(protocol.PrefixCameraTarget, protocol.FormatHitResult(e.target))
	case req["GetTargetOfPoint"] != nil:
		reply(protocol.PrefixTargetOfPoint, protocol.FormatHitResult(e.target))
	case req["SpawnXActors"] != nil:
		var n int
		json.Unmarshal(req["SpawnXActors"], &n)
		e.lastSpawned = n
		if e.spawnLimit > 0 && n > e.spawnLimit {
			n = e.spawnLimit
		}
		coords := make([]core.Coordinate, n)
		for i := range coords {
			coords[i] = core.Coordinate{X: float64(i * 100), Y: float64(i * 10), Z: 88}
		}
		reply(protocol.PrefixSpawnActors, protocol.FormatSpawnedActors(coords))
	case req["controls"] != nil:
		var controls map[string]json.RawMessage
		json.Unmarshal(req["controls"], &controls)
		switch {
		case controls["goto"] != nil:
			if e.gotoDelay > 0 {
				ack, delay := e.ack, e.gotoDelay
				go func() {
					time.Sleep(delay)
					e.conn.Inject(protocol.PrefixGoto + ack)
				}()
				return
			}
			reply(protocol.PrefixGoto, e.ack)
		case controls["turnTowards"] != nil:
			reply(protocol.PrefixTurnTowards, e.ack)
		case controls["turnCameraXDeg"] != nil:
			reply(protocol.PrefixTurnCameraXDeg, e.ack)
		}
	}
}

func (e *fakeEngine) set(fn func(e *fakeEngine)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

func newTestControl(t *testing.T, opts ...Option) (*Control, *fakeEngine) {
	t.Helper()

	conn := transport.NewMemory()
	engine := &fakeEngine{conn: conn, ack: "Done", distanceCm: "0", silent: map[string]bool{}}
	conn.OnSend(engine.handle)

	r, err := router.New(conn, nopLogger{})
	require.NoError(t, err)

	c, err := New(conn, r, zerolog.Nop(), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		conn.Close()
	})

	return c, engine
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_RegistersEveryPrefix(t *testing.T) {
	conn := transport.NewMemory()
	r, err := router.New(conn, nopLogger{})
	require.NoError(t, err)

	_, err = New(conn, r, zerolog.Nop())
	require.NoError(t, err)

	for _, p := range protocol.Prefixes {
		assert.True(t, r.HasPrefix(p), p)
	}

	// a second facade on the same router would steal replies
	_, err = New(conn, r, zerolog.Nop())
	assert.ErrorIs(t, err, router.ErrPrefixOverlap)
}

func TestQueryState(t *testing.T) {
	c, engine := newTestControl(t)
	want := core.DroneState{Position: core.Coordinate{X: 19715, Y: 33581.5, Z: 206.25}, CollisionCount: 2}
	engine.set(func(e *fakeEngine) { e.state = want })

	got, err := c.QueryState(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQueryState_Idempotent(t *testing.T) {
	c, engine := newTestControl(t)
	engine.set(func(e *fakeEngine) { e.state.CollisionCount = 1 })

	first, err := c.QueryState(testContext(t))
	require.NoError(t, err)
	second, err := c.QueryState(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, first.CollisionCount, second.CollisionCount)
}

func TestQueryState_Malformed(t *testing.T) {
	c, engine := newTestControl(t)
	engine.set(func(e *fakeEngine) { e.stateRaw = `{"positionXVal":1.0}` })

	_, err := c.QueryState(testContext(t))
	assert.ErrorIs(t, err, protocol.ErrMalformedReply)
}

func TestQueryState_DiscardsStaleReply(t *testing.T) {
	c, engine := newTestControl(t)

	// a late reply to an earlier query is already waiting
	engine.conn.Inject(protocol.PrefixDroneState + protocol.FormatDroneState(core.DroneState{CollisionCount: 9}))
	require.Eventually(t, func() bool { return c.Pending()[protocol.PrefixDroneState] == 1 }, time.Second, time.Millisecond)

	got, err := c.QueryState(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 0, got.CollisionCount)
}

func TestAcknowledgedCommands(t *testing.T) {
	tests := []struct {
		name    string
		command string
		call    func(ctx context.Context, c *Control) error
	}{
		{"goto", "goto", func(ctx context.Context, c *Control) error {
			return c.MoveTo(ctx, 1, 2, 3, protocol.DefaultGotoSpeed, true)
		}},
		{"turn towards", "turnTowards", func(ctx context.Context, c *Control) error {
			return c.RotateTowards(ctx, 1, 2, 3, protocol.DefaultRotationSpeed)
		}},
		{"turn camera", "turnCameraXDeg", func(ctx context.Context, c *Control) error {
			return c.TurnCamera(ctx, -45, protocol.DefaultCameraTurnSpeed)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name+" done", func(t *testing.T) {
			c, _ := newTestControl(t)
			assert.NoError(t, tt.call(testContext(t), c))
		})

		t.Run(tt.name+" rejected", func(t *testing.T) {
			c, engine := newTestControl(t)
			engine.set(func(e *fakeEngine) { e.ack = "Path blocked" })

			err := tt.call(testContext(t), c)
			require.Error(t, err)

			var ackErr *protocol.AckError
			require.True(t, errors.As(err, &ackErr))
			assert.Equal(t, tt.command, ackErr.Command)
			assert.Equal(t, "Path blocked", ackErr.Token)
		})
	}
}

func TestMoveTo_Request(t *testing.T) {
	c, engine := newTestControl(t)

	require.NoError(t, c.MoveTo(testContext(t), 10, 20, 30, 4, false))

	sent := engine.conn.Sent()
	require.Len(t, sent, 1)
	assert.JSONEq(t,
		`{"controls":{"goto":{"gotoXVal":10,"gotoYVal":20,"gotoZVal":30,"gotoSpeed":4,"turnWithMove":false}}}`,
		sent[0])
}

func TestMoveTo_TimeoutThenOrphanDiscarded(t *testing.T) {
	c, engine := newTestControl(t, WithReplyTimeout(30*time.Millisecond))
	engine.set(func(e *fakeEngine) { e.silent[protocol.PrefixGoto] = true })

	err := c.MoveTo(testContext(t), 1, 1, 1, 2, true)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the lost acknowledgement finally shows up
	engine.conn.Inject(protocol.PrefixGoto + "Done")
	require.Eventually(t, func() bool { return c.kinds[protocol.PrefixGoto].ch.Len() == 1 }, time.Second, time.Millisecond)

	engine.set(func(e *fakeEngine) {
		e.silent[protocol.PrefixGoto] = false
		e.ack = "Blocked"
	})

	err = c.MoveTo(testContext(t), 2, 2, 2, 2, true)
	assert.ErrorIs(t, err, protocol.ErrUnexpectedAck, "the orphaned Done must not answer the new request")
}

func TestMoveTo_DuplicatedAckDiscarded(t *testing.T) {
	c, engine := newTestControl(t)

	require.NoError(t, c.MoveTo(testContext(t), 1, 1, 1, 2, true))

	// the network delivers the acknowledgement twice
	engine.conn.Inject(protocol.PrefixGoto + "Done")
	require.Eventually(t, func() bool { return c.Pending()[protocol.PrefixGoto] == 1 }, time.Second, time.Millisecond)

	engine.set(func(e *fakeEngine) { e.silent[protocol.PrefixGoto] = true })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.MoveTo(ctx, 2, 2, 2, 2, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "the duplicate must not complete the next goto")
	assert.Equal(t, 0, c.Pending()[protocol.PrefixGoto])
}

func TestCallerContextCancels(t *testing.T) {
	c, engine := newTestControl(t)
	engine.set(func(e *fakeEngine) { e.silent[protocol.PrefixTurnTowards] = true })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.RotateTowards(ctx, 0, 0, 0, 90)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDifferentKindsRunConcurrently(t *testing.T) {
	c, engine := newTestControl(t)
	engine.set(func(e *fakeEngine) { e.gotoDelay = 200 * time.Millisecond })

	gotoCtx := testContext(t)
	gotoDone := make(chan error, 1)
	go func() { gotoDone <- c.MoveTo(gotoCtx, 5, 5, 5, 2, true) }()

	start := time.Now()
	_, err := c.QueryState(testContext(t))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "state query must not wait behind goto")

	select {
	case err := <-gotoDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("goto never completed")
	}
}

func TestDistanceToCameraDirection(t *testing.T) {
	c, engine := newTestControl(t)
	engine.set(func(e *fakeEngine) { e.distanceCm = "1250" })

	m, err := c.DistanceToCameraDirection(testContext(t))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, m, 1e-9)
}

func TestQueryTargets(t *testing.T) {
	c, engine := newTestControl(t)

	target, err := c.QueryCameraTarget(testContext(t))
	require.NoError(t, err)
	assert.Nil(t, target)

	want := &core.Target{DisplayName: "Cube", ClassName: "StaticMeshActor", Position: core.Coordinate{X: 1, Y: 2, Z: 3}}
	engine.set(func(e *fakeEngine) { e.target = want })

	target, err = c.QueryTargetAtPoint(testContext(t), 0.5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, want, target)

	assert.JSONEq(t, `{"GetTargetOfPoint":{"xVal":0.5,"yVal":0.5}}`, engine.conn.Sent()[1])
}

func TestSpawnActors(t *testing.T) {
	c, engine := newTestControl(t)

	coords, err := c.SpawnActors(testContext(t), 500)
	require.NoError(t, err)
	assert.Len(t, coords, protocol.MaxSpawnActors)
	var requested int
	engine.set(func(e *fakeEngine) { requested = e.lastSpawned })
	assert.Equal(t, protocol.MaxSpawnActors, requested)
	assert.JSONEq(t, `{"SpawnXActors":150}`, engine.conn.Sent()[0])

	assert.Equal(t, protocol.MaxSpawnActors, c.Actors().Len())
	assert.Equal(t, coords, c.Actors().Positions())

	coords, err = c.SpawnActors(testContext(t), 3)
	require.NoError(t, err)
	assert.Len(t, coords, 3)
	assert.Equal(t, 3, c.Actors().Len(), "spawn replaces the set")
}

func TestDestroyActorAtPoint(t *testing.T) {
	c, engine := newTestControl(t)

	_, err := c.SpawnActors(testContext(t), 4)
	require.NoError(t, err)

	// actor 2 sits at (200, 20, 88)
	engine.set(func(e *fakeEngine) {
		e.target = &core.Target{DisplayName: "Person", ClassName: "BP_Person_C", Position: core.Coordinate{X: 200, Y: 20, Z: 88}}
	})

	ok, err := c.DestroyActorAtPoint(testContext(t), 0.4, 0.6)
	require.NoError(t, err)
	assert.True(t, ok)

	sent := engine.conn.Sent()
	assert.JSONEq(t, `{"DestroyActor":2}`, sent[len(sent)-1])
	assert.Equal(t, 1, c.Actors().DestroyedCount())
	assert.Equal(t, 4, c.Actors().Len(), "indices stay stable")
}

func TestDestroyActor_NoMatch(t *testing.T) {
	c, engine := newTestControl(t)

	_, err := c.SpawnActors(testContext(t), 2)
	require.NoError(t, err)

	// nothing in view
	ok, err := c.DestroyActorFromCamera(testContext(t))
	require.NoError(t, err)
	assert.False(t, ok)

	// something in view that was not spawned
	engine.set(func(e *fakeEngine) {
		e.target = &core.Target{DisplayName: "Tree", ClassName: "StaticMeshActor", Position: core.Coordinate{X: 100, Y: 10, Z: 88.5}}
	})
	ok, err = c.DestroyActorFromCamera(testContext(t))
	require.NoError(t, err)
	assert.False(t, ok)

	for _, s := range engine.conn.Sent() {
		assert.NotContains(t, s, "DestroyActor")
	}
}

func TestDestroyActorFromCamera(t *testing.T) {
	c, engine := newTestControl(t)

	_, err := c.SpawnActors(testContext(t), 2)
	require.NoError(t, err)

	engine.set(func(e *fakeEngine) {
		e.target = &core.Target{DisplayName: "Person", ClassName: "BP_Person_C", Position: core.Coordinate{X: 0, Y: 0, Z: 88}}
	})

	ok, err := c.DestroyActorFromCamera(testContext(t))
	require.NoError(t, err)
	assert.True(t, ok)

	sent := engine.conn.Sent()
	assert.JSONEq(t, `{"DestroyActor":0}`, sent[len(sent)-1])
}

func TestFireAndForget(t *testing.T) {
	c, engine := newTestControl(t)

	require.NoError(t, c.MoveUp(1))
	require.NoError(t, c.MoveDown(1))
	require.NoError(t, c.MoveForward(0.5))
	require.NoError(t, c.MoveLeft(2))
	require.NoError(t, c.RotateLeft(0.3))
	require.NoError(t, c.CameraUp(1))
	require.NoError(t, c.Hover())
	require.NoError(t, c.RotateDegrees(90, protocol.DefaultRotationSpeed))
	require.NoError(t, c.RequestDaytimeChange(30))
	require.NoError(t, c.SendGrade(42.5))

	want := []string{
		`{"controls":{"upAmount":1}}`,
		`{"controls":{"upAmount":-1}}`,
		`{"controls":{"pitchForwardAmount":0.5}}`,
		`{"controls":{"rollRightAmount":-2}}`,
		`{"controls":{"yawRightAmount":-0.3}}`,
		`{"controls":{"cameraDownAmount":-1}}`,
		`{"controls":{"hover":"true"}}`,
		`{"controls":{"rotateXDegrees":90,"rotationSpeed":90}}`,
		`{"DaytimeChangeRequested":30}`,
		`{"droneGrade":42.5}`,
	}

	sent := engine.conn.Sent()
	require.Len(t, sent, len(want))
	for i := range want {
		assert.JSONEq(t, want[i], sent[i])
	}
}

func TestClose_UnblocksWaiters(t *testing.T) {
	c, engine := newTestControl(t)
	engine.set(func(e *fakeEngine) { e.silent[protocol.PrefixDroneState] = true })

	errc := make(chan error, 1)
	go func() {
		_, err := c.QueryState(context.Background())
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	c.Close()

	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}
