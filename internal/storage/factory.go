package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/database"
	"github.com/dronegrade/harness/internal/geo"
	gormstorage "github.com/dronegrade/harness/internal/storage/gorm"
	influxstorage "github.com/dronegrade/harness/internal/storage/influx"
	"github.com/dronegrade/harness/internal/storage/memory"
	"github.com/rs/zerolog"
)

// Dependencies are shared by every backend.
type Dependencies struct {
	Georef *geo.Georef
	Logger zerolog.Logger
	// DumpDir receives per-session files that are not written to a server.
	DumpDir string
	Now     func() time.Time
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.Georef == nil {
		deps.Georef = geo.NewGeoref(0, 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger.With().Str("storage", cfg.Type).Logger()

	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory, deps.Georef), nil
	case "postgres", "sqlite":
		db := database.NewManager(logger)
		if err := db.Connect(cfg); err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", cfg.Type, err)
		}
		b := gormstorage.New(gormstorage.Dependencies{
			DB:      db,
			Georef:  deps.Georef,
			Logger:  logger,
			DumpDir: deps.DumpDir,
		})
		return &managedBackend{Backend: b, db: db}, nil
	case "influx":
		backup := filepath.Join(deps.DumpDir,
			fmt.Sprintf("influx_backup_%s.lp.gz", deps.Now().UTC().Format("20060102_150405")))
		return influxstorage.New(cfg.Influx, deps.Georef, backup, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// managedBackend closes the database connection it was opened with.
type managedBackend struct {
	*gormstorage.Backend
	db *database.Manager
}

func (m *managedBackend) Close() error {
	return errors.Join(m.Backend.Close(), m.db.Close())
}
