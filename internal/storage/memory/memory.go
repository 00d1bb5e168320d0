// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/pkg/core"
)

// Backend stores session data in memory and exports it to JSON when the
// session ends
type Backend struct {
	cfg    config.MemoryConfig
	georef *geo.Georef

	session *core.Session
	result  *core.SessionResult
	ticks   []core.ScoreSnapshot
	events  []core.ScoreEvent
	track   []core.TrackSample

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, georef *geo.Georef) *Backend {
	return &Backend{
		cfg:    cfg,
		georef: georef,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.result = nil
	b.ticks = nil
	b.events = nil
	b.track = nil
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(r core.SessionResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session started")
	}
	b.result = &r
	return b.exportJSON()
}

// RecordTick appends a score snapshot
func (b *Backend) RecordTick(s core.ScoreSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticks = append(b.ticks, s)
	return nil
}

// RecordEvent appends a score change
func (b *Backend) RecordEvent(e core.ScoreEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

// RecordTrack appends a drone position
func (b *Backend) RecordTrack(t core.TrackSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.track = append(b.track, t)
	return nil
}

// ExportedFilePath returns the file written by the last EndSession
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Counts returns the number of ticks, events and track samples held
func (b *Backend) Counts() (ticks, events, track int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks), len(b.events), len(b.track)
}
