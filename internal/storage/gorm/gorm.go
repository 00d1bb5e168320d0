// Package gormstorage implements the storage.Backend interface using GORM
// (SQLite or PostgreSQL) with internal queues and a background DB writer
// goroutine.
package gormstorage

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dronegrade/harness/internal/database"
	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/internal/model"
	"github.com/dronegrade/harness/internal/model/convert"
	"github.com/dronegrade/harness/internal/queue"
	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is a connected manager; nil keeps rows queued in memory only.
	DB     *database.Manager
	Georef *geo.Georef
	Logger zerolog.Logger
	// DumpDir receives a copy of an in-memory SQLite database at the end
	// of each session.
	DumpDir       string
	FlushInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Ticks  *queue.Queue[model.ScoreTick]
	Events *queue.Queue[model.ScoreEvent]
	Track  *queue.Queue[model.TrackPoint]
}

func newQueues() *queues {
	return &queues{
		Ticks:  queue.New[model.ScoreTick](),
		Events: queue.New[model.ScoreEvent](),
		Track:  queue.New[model.TrackPoint](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	done      chan struct{}
	writeMu   sync.Mutex

	mu      sync.Mutex
	session model.Session
	path    []core.Coordinate
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.Georef == nil {
		deps.Georef = geo.NewGeoref(0, 0)
	}
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB
// writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	if err := b.deps.DB.Setup(); err != nil {
		close(b.done)
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	go b.runWriter()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
	default:
		close(b.stopChan)
	}
	<-b.done
	b.flush()
	return nil
}

// StartSession inserts the session and its spawned actors.
func (b *Backend) StartSession(s *core.Session) error {
	row, err := convert.CoreToSession(s)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.path = nil
	b.mu.Unlock()

	if b.deps.DB == nil {
		b.mu.Lock()
		b.session = row
		b.mu.Unlock()
		return nil
	}

	db := b.deps.DB.DB
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	if len(s.Actors) > 0 {
		actors := convert.CoreToActors(row.ID, s.Actors, b.deps.Georef)
		if err := db.Create(&actors).Error; err != nil {
			return fmt.Errorf("failed to insert actors: %w", err)
		}
	}

	b.mu.Lock()
	b.session = row
	b.mu.Unlock()
	b.sessionID.Store(uint64(row.ID))

	b.deps.Logger.Info().Uint("sessionId", row.ID).Int("actors", len(s.Actors)).Msg("session stored")
	return nil
}

// EndSession flushes queued rows and writes the result and flight track
// onto the session row.
func (b *Backend) EndSession(r core.SessionResult) error {
	b.flush()

	b.mu.Lock()
	convert.ApplyResult(&b.session, r)
	if track, err := b.deps.Georef.Track(b.path); err == nil {
		b.session.Track = track
	}
	row := b.session
	b.mu.Unlock()

	if b.deps.DB == nil {
		return nil
	}

	db := b.deps.DB.DB
	err := db.Model(&model.Session{}).Where("id = ?", row.ID).Updates(map[string]any{
		"end_time":   row.EndTime,
		"points":     row.Points,
		"detections": row.Detections,
		"elapsed_ms": row.ElapsedMs,
		"reason":     row.Reason,
		"track":      row.Track,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if b.deps.DB.InMemory() && b.deps.DumpDir != "" {
		path := filepath.Join(b.deps.DumpDir,
			fmt.Sprintf("session_%s_%d.db", row.StartTime.Format("20060102_150405"), row.ID))
		if err := b.deps.DB.DumpMemoryToDisk(path); err != nil {
			return err
		}
		b.deps.Logger.Info().Str("path", path).Msg("session database dumped")
	}
	return nil
}

// RecordTick converts and queues a score snapshot.
func (b *Backend) RecordTick(s core.ScoreSnapshot) error {
	b.queues.Ticks.Push(convert.CoreToScoreTick(0, s))
	return nil
}

// RecordEvent converts and queues a score change.
func (b *Backend) RecordEvent(e core.ScoreEvent) error {
	b.queues.Events.Push(convert.CoreToScoreEvent(0, e))
	return nil
}

// RecordTrack converts and queues a drone position.
func (b *Backend) RecordTrack(t core.TrackSample) error {
	b.mu.Lock()
	b.path = append(b.path, t.Position)
	b.mu.Unlock()
	b.queues.Track.Push(convert.CoreToTrackPoint(0, t, b.deps.Georef))
	return nil
}

// Session returns a copy of the current session row.
func (b *Backend) Session() model.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger, prepare func([]T)) {
	if q.Len() == 0 {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("table", name).Int("rows", len(items)).Msg("Error writing queued rows")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
}

func (b *Backend) flush() {
	if b.deps.DB == nil || b.queues == nil {
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	// Read sessionID once per write cycle
	sessionID := uint(b.sessionID.Load())
	if sessionID == 0 {
		return
	}

	db := b.deps.DB.DB
	log := b.deps.Logger

	writeQueue(db, b.queues.Ticks, "score_ticks", log, func(items []model.ScoreTick) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(db, b.queues.Events, "score_events", log, func(items []model.ScoreEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(db, b.queues.Track, "track_points", log, func(items []model.TrackPoint) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
}

// runWriter periodically drains queues into the DB.
func (b *Backend) runWriter() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
