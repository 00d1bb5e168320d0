package gormstorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/database"
	"github.com/dronegrade/harness/internal/model"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend(t *testing.T) *Backend {
	b := New(Dependencies{Logger: zerolog.Nop()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newSQLiteBackend(t *testing.T) (*Backend, *database.Manager) {
	m := database.NewManager(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "sessions.db")
	require.NoError(t, m.Connect(config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: path}}))
	t.Cleanup(func() { _ = m.Close() })

	b := New(Dependencies{DB: m, Logger: zerolog.Nop(), FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	return b, m
}

func testSession() *core.Session {
	return &core.Session{
		ID:        "5d2c9e1a",
		StartTime: start,
		Grading:   core.Grading{InitialPoints: 100, TargetLabel: "person"},
		Actors:    []core.Coordinate{{X: 100, Y: 10, Z: 88}, {X: 200, Y: 20, Z: 88}, {X: 300, Y: 30, Z: 88}},
	}
}

func TestNew(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, DefaultFlushInterval, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.Georef)
}

func TestInitClose(t *testing.T) {
	b := New(Dependencies{Logger: zerolog.Nop()})

	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestRecord_QueuesWithoutDB(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartSession(testSession()))

	require.NoError(t, b.RecordTick(core.ScoreSnapshot{Points: 99, Elapsed: time.Second}))
	require.NoError(t, b.RecordEvent(core.ScoreEvent{Kind: core.EventDecay, Delta: -1, Points: 99}))
	require.NoError(t, b.RecordTrack(core.TrackSample{Time: start, Position: core.Coordinate{X: 1}}))

	assert.Equal(t, 1, b.queues.Ticks.Len())
	assert.Equal(t, 1, b.queues.Events.Len())
	assert.Equal(t, 1, b.queues.Track.Len())
}

func TestEndSession_WithoutDBKeepsResult(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordTrack(core.TrackSample{Position: core.Coordinate{X: 0}}))
	require.NoError(t, b.RecordTrack(core.TrackSample{Position: core.Coordinate{X: 100}}))

	require.NoError(t, b.EndSession(core.SessionResult{Points: 47, Reason: core.StopCollision}))

	s := b.Session()
	assert.Equal(t, 47.0, s.Points)
	assert.Equal(t, "collision", s.Reason)
	assert.Equal(t, 2, s.Track.Coordinates().Length())
}

func TestSession_WritesToSQLite(t *testing.T) {
	b, m := newSQLiteBackend(t)

	require.NoError(t, b.StartSession(testSession()))
	for i := 1; i <= 3; i++ {
		elapsed := time.Duration(i) * time.Second
		require.NoError(t, b.RecordTick(core.ScoreSnapshot{Time: start.Add(elapsed), Points: float64(100 - i), Elapsed: elapsed, Running: true}))
		require.NoError(t, b.RecordEvent(core.ScoreEvent{Time: start.Add(elapsed), Kind: core.EventDecay, Delta: -1, Points: float64(100 - i), Elapsed: elapsed}))
		require.NoError(t, b.RecordTrack(core.TrackSample{Time: start.Add(elapsed), Position: core.Coordinate{X: float64(i) * 100, Z: 500}}))
	}

	require.NoError(t, b.EndSession(core.SessionResult{
		EndTime: start.Add(3 * time.Second),
		Points:  97,
		Elapsed: 3 * time.Second,
		Reason:  core.StopTimeout,
	}))
	require.NoError(t, b.Close())

	db := m.DB
	var session model.Session
	require.NoError(t, db.Where("uuid = ?", "5d2c9e1a").First(&session).Error)
	assert.Equal(t, 97.0, session.Points)
	assert.Equal(t, int64(3000), session.ElapsedMs)
	assert.Equal(t, "timeout", session.Reason)

	var count int64
	require.NoError(t, db.Model(&model.Actor{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
	require.NoError(t, db.Model(&model.ScoreTick{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
	require.NoError(t, db.Model(&model.ScoreEvent{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
	require.NoError(t, db.Model(&model.TrackPoint{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	assert.Equal(t, 0, b.queues.Ticks.Len())
}

func TestEndSession_DumpsInMemoryDB(t *testing.T) {
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(config.StorageConfig{Type: "sqlite"}))
	t.Cleanup(func() { _ = m.Close() })

	dumpDir := t.TempDir()
	b := New(Dependencies{DB: m, Logger: zerolog.Nop(), DumpDir: dumpDir, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.EndSession(core.SessionResult{Points: 100, Reason: core.StopExternalStop}))

	entries, err := os.ReadDir(dumpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "session_20260301_080000_")
}
