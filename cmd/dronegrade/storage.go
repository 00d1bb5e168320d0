package main

import (
	"fmt"

	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/internal/storage"
	"github.com/rs/zerolog"
)

func initStorage(cfg config.StorageConfig, georef *geo.Georef, dumpDir string, logger zerolog.Logger) (storage.Backend, error) {
	logger.Debug().Str("type", cfg.Type).Msg("initializing storage")

	backend, err := storage.NewBackend(cfg, storage.Dependencies{
		Georef:  georef,
		Logger:  logger,
		DumpDir: dumpDir,
	})
	if err != nil {
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.Type, err)
	}

	logger.Info().Str("type", cfg.Type).Msg("storage backend initialized")
	return backend, nil
}
