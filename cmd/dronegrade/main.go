// Command dronegrade flies a simulated drone over UDP and scores the run.
//
// Usage:
//
//	dronegrade [-config dir]     run one scored session
//	dronegrade stop [addr]       stop the session of a running instance
//	dronegrade score [addr]      print the score of a running instance
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dronegrade/harness/internal/api"
	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/drone"
	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/internal/grade"
	"github.com/dronegrade/harness/internal/logging"
	"github.com/dronegrade/harness/internal/monitor"
	intOtel "github.com/dronegrade/harness/internal/otel"
	"github.com/dronegrade/harness/internal/patrol"
	"github.com/dronegrade/harness/internal/router"
	"github.com/dronegrade/harness/internal/session"
	"github.com/dronegrade/harness/internal/storage"
	"github.com/dronegrade/harness/internal/transport"
	"github.com/rs/zerolog"
)

// BuildDate can be set at build time via ldflags
var (
	AppName    = "dronegrade"
	AppVersion = "0.1.0"
	BuildDate  = "unknown"
)

const (
	logRetention = 14 * 24 * time.Hour
	initTimeout  = 30 * time.Second
	trackEvery   = time.Second
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "stop", "score":
			if err := remote(args[0], args[1:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
	}

	fs := flag.NewFlagSet(AppName, flag.ExitOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	_ = fs.Parse(args)

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// remote talks to the status API of another running instance.
func remote(cmd string, args []string) error {
	addr := "127.0.0.1:8089"
	if len(args) > 0 {
		addr = args[0]
	}
	c := api.NewClient(addr)

	switch cmd {
	case "stop":
		if err := c.Stop(); err != nil {
			return err
		}
		fmt.Println("stop requested")
	case "score":
		snap, err := c.Score()
		if err != nil {
			return err
		}
		printSnapshot(os.Stdout, snap)
	}
	return nil
}

func run(configDir string) error {
	start := time.Now()

	if err := config.Load(configDir); err != nil {
		return err
	}

	logCfg := config.GetLoggingConfig()

	otelProvider, otelFiles, otelErr := setupOTel(logCfg.LogsDir, start)
	if otelErr != nil {
		otelProvider, _ = intOtel.New(intOtel.Config{})
	}

	var logOpts []logging.Option
	if lp := otelProvider.LoggerProvider(); lp != nil {
		logOpts = append(logOpts, logging.WithLoggerProvider(lp))
	}
	logger, logCloser, err := logging.Setup(logCfg, AppName, start, logOpts...)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logCloser.Close()

	// flushes pending OTel records before the log file closes
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
		}
		for _, f := range otelFiles {
			_ = f.Close()
		}
	}()

	logger.Info().Str("version", AppVersion).Str("build", BuildDate).Msg("starting")
	if otelErr != nil {
		logger.Warn().Err(otelErr).Msg("OpenTelemetry disabled")
	}

	if n, err := logging.RemoveOldLogs(logCfg.LogsDir, logRetention, start); err != nil {
		logger.Warn().Err(err).Msg("failed to remove old logs")
	} else if n > 0 {
		logger.Debug().Int("removed", n).Msg("removed old log files")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transport and control
	tcfg := config.GetTransportConfig()
	conn, err := transport.Listen(tcfg)
	if err != nil {
		logger.Error().Err(err).Int("port", tcfg.Port).Msg("failed to bind UDP port")
		return err
	}
	defer conn.Close()
	logger.Info().Str("local", conn.LocalAddr().String()).Int("peerPort", tcfg.PeerPort()).Msg("UDP endpoint ready")

	r, err := router.New(conn, logging.NewRouterLogger(logger))
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	droneOpts := []drone.Option{drone.WithReplyTimeout(config.GetDuration("drone.replyTimeout"))}
	if logger.GetLevel() <= zerolog.DebugLevel {
		droneOpts = append(droneOpts, drone.WithRouteLogging())
	}
	ctrl, err := drone.New(conn, r, logger, droneOpts...)
	if err != nil {
		return fmt.Errorf("creating drone control: %w", err)
	}
	defer ctrl.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("router stopped")
		}
	}()
	defer wg.Wait()
	defer cancel()

	// Session
	simCfg := config.GetSimulationConfig()
	geoCfg := config.GetGeoConfig()
	georef := geo.NewGeoref(geoCfg.OriginLongitude, geoCfg.OriginLatitude)

	initCtx, initCancel := context.WithTimeout(ctx, initTimeout)
	sess, err := session.Init(initCtx, ctrl, simCfg.Grading, logger)
	initCancel()
	if err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	sessCtx := session.NewContext()
	sessCtx.Set(sess)
	logger = logger.With().Str("session", sess.ID).Logger()

	backend, err := initStorage(config.GetStorageConfig(), georef, logCfg.LogsDir, logger)
	if err != nil {
		return err
	}
	defer backend.Close()
	if err := backend.StartSession(sess); err != nil {
		logger.Error().Err(err).Msg("failed to record session start")
	}
	recorder := storage.NewRecorder(backend, logger)

	// Optional collaborators
	svc, err := startServices(ctx, sess, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	opts := []grade.Option{grade.WithRecorder(recorder)}
	if svc.publisher != nil {
		opts = append(opts, grade.WithRecorder(svc.publisher))
	}

	tracked := newTrackingDrone(ctrl, recorder.RecordTrack, trackEvery)
	loop := grade.New(simCfg, tracked, svc.detectors, logger, opts...)

	if apiCfg := config.GetAPIConfig(); apiCfg.Enabled {
		srv := api.NewServer(api.Deps{Session: sess, Scorer: loop, Actors: ctrl.Actors(), Georef: georef}, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx, apiCfg.Listen); err != nil {
				logger.Error().Err(err).Msg("status API stopped")
			}
		}()
	}

	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		mon, err := monitor.NewService(monitor.Dependencies{
			Scorer:   loop,
			Pending:  ctrl.Pending,
			Dir:      logCfg.LogsDir,
			Interval: monCfg.Interval,
			Logger:   logger,
		})
		if err == nil {
			err = mon.Start()
		}
		if err != nil {
			logger.Warn().Err(err).Msg("status monitor not started")
		} else {
			defer mon.Stop()
		}
	}

	var route *patrol.Patrol
	if config.GetBool("patrol.enabled") {
		pcfg, err := config.GetPatrolConfig()
		if err != nil {
			return err
		}
		route = patrol.New(pcfg, ctrl, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := route.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("patrol failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("stopping session")
			loop.Stop()
		case <-loop.Done():
		}
	}()

	result := loop.Run(ctx)
	sessCtx.End(result)
	if route != nil {
		route.Stop()
	}

	if err := backend.EndSession(result); err != nil {
		logger.Error().Err(err).Msg("failed to record session end")
	}
	if svc.publisher != nil {
		svc.publisher.PublishResult(result)
		svc.publisher.Wait()
	}

	exported := ""
	if e, ok := backend.(storage.Exportable); ok {
		exported = e.ExportedFilePath()
	}
	printReport(os.Stdout, sess, result, ctrl.Actors(), exported)
	return nil
}

func setupOTel(logsDir string, start time.Time) (*intOtel.Provider, []*os.File, error) {
	cfg := config.GetOTelConfig()
	if !cfg.Enabled {
		p, err := intOtel.New(intOtel.Config{})
		return p, nil, err
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating logs dir: %w", err)
	}

	stamp := start.Format("20060102_150405")
	metricsFile, err := os.Create(filepath.Join(logsDir, fmt.Sprintf("%s_metrics_%s.json", AppName, stamp)))
	if err != nil {
		return nil, nil, fmt.Errorf("creating metrics file: %w", err)
	}
	logFile, err := os.Create(filepath.Join(logsDir, fmt.Sprintf("%s_otel_%s.json", AppName, stamp)))
	if err != nil {
		_ = metricsFile.Close()
		return nil, nil, fmt.Errorf("creating otel log file: %w", err)
	}
	files := []*os.File{metricsFile, logFile}

	p, err := intOtel.New(intOtel.Config{
		Enabled:        true,
		ServiceName:    cfg.ServiceName,
		ExportInterval: cfg.ExportInterval,
		BatchTimeout:   cfg.BatchTimeout,
		MetricWriter:   metricsFile,
		LogWriter:      logFile,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
	})
	if err != nil {
		for _, f := range files {
			_ = f.Close()
		}
		return nil, nil, err
	}
	return p, files, nil
}
