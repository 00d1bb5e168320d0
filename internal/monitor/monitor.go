// Package monitor periodically writes a process and session status file.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// StatusFileName is written inside Dependencies.Dir.
const StatusFileName = "status.txt"

// Scorer exposes the running score.
type Scorer interface {
	Snapshot() core.ScoreSnapshot
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Scorer Scorer
	// Pending reports unconsumed replies per prefix.
	Pending  func() map[string]int
	Dir      string
	Interval time.Duration
	Logger   zerolog.Logger
}

// Status is one status file entry.
type Status struct {
	Time       time.Time      `json:"time"`
	PID        int            `json:"pid"`
	CPUPercent float64        `json:"cpuPercent"`
	RSSMB      float64        `json:"rssMb"`
	Goroutines int            `json:"goroutines"`
	Points     float64        `json:"points"`
	Detections int            `json:"detections"`
	Elapsed    string         `json:"elapsed"`
	Running    bool           `json:"running"`
	Pending    map[string]int `json:"pending,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	proc      *process.Process
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) (*Service, error) {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("opening own process: %w", err)
	}
	return &Service{
		deps: deps,
		proc: proc,
	}, nil
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, StatusFileName)
}

// Collect gathers the current status. Process figures that cannot be read
// are left at zero.
func (s *Service) Collect() Status {
	st := Status{
		Time:       time.Now().UTC(),
		PID:        int(s.proc.Pid),
		Goroutines: runtime.NumGoroutine(),
	}

	if cpu, err := s.proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if memInfo, err := s.proc.MemoryInfo(); err == nil {
		st.RSSMB = float64(memInfo.RSS) / (1024 * 1024)
	}

	if s.deps.Scorer != nil {
		snap := s.deps.Scorer.Snapshot()
		st.Points = snap.Points
		st.Detections = snap.Detections
		st.Elapsed = snap.Elapsed.Truncate(time.Millisecond).String()
		st.Running = snap.Running
	}
	if s.deps.Pending != nil {
		st.Pending = s.deps.Pending()
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	statusFile, err := os.Create(s.Path())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating status file: %w", err)
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	logger := s.deps.Logger
	logger.Debug().Str("path", s.Path()).Dur("interval", s.deps.Interval).Msg("Starting status monitor")

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		defer statusFile.Close()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			s.write(statusFile, logger)
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

func (s *Service) write(f *os.File, logger zerolog.Logger) {
	data, err := json.MarshalIndent(s.Collect(), "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}

	if err := f.Truncate(0); err != nil {
		logger.Error().Err(err).Msg("Error truncating status file")
		return
	}
	if _, err := f.Seek(0, 0); err != nil {
		logger.Error().Err(err).Msg("Error rewinding status file")
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		logger.Error().Err(err).Msg("Error writing status file")
	}
}

// Stop stops the status monitor and waits for its last write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	done := s.done
	s.mu.Unlock()
	<-done
}
