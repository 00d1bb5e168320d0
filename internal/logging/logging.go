package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/dronegrade/harness/internal/config"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/log"
)

// stdout is the console sink; tests replace it.
var stdout io.Writer = os.Stdout

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel maps a config level name to a zerolog level. Unknown names
// fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToUpper(name) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Option configures Setup.
type Option func(*setupOptions)

type setupOptions struct {
	logProvider log.LoggerProvider
}

// WithLoggerProvider also forwards every entry to an OpenTelemetry log
// pipeline.
func WithLoggerProvider(p log.LoggerProvider) Option {
	return func(o *setupOptions) {
		o.logProvider = p
	}
}

// Setup builds the process logger. Entries go to the console with colors,
// to a per-run file without colors, to Graylog as GELF when enabled, and to
// OpenTelemetry when a logger provider is given. The returned closer
// flushes and closes the file and GELF sinks.
func Setup(cfg config.LoggingConfig, appName string, start time.Time, opts ...Option) (zerolog.Logger, io.Closer, error) {
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating logs dir: %w", err)
	}

	path := LogFilePath(cfg.LogsDir, appName, start)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}

	closers := sinks{file}
	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        stdout,
			TimeFormat: time.RFC3339,
		},
		zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}

	if cfg.GraylogEnabled {
		gw, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			_ = file.Close()
			return zerolog.Nop(), nil, fmt.Errorf("connecting to graylog: %w", err)
		}
		writers = append(writers, gw)
		closers = append(closers, gw)
	}

	if o.logProvider != nil {
		writers = append(writers, NewOTelWriter(appName, o.logProvider))
	}

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Str("app", appName).Logger()

	logger.Info().
		Str("loglevel", logger.GetLevel().String()).
		Str("file", path).
		Bool("graylog", cfg.GraylogEnabled).
		Bool("otel", o.logProvider != nil).
		Msg("Logging set up")

	return logger, closers, nil
}

type sinks []io.Closer

func (s sinks) Close() error {
	var errs []error
	for _, c := range s {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveOldLogs deletes .log files in dir older than maxAge and returns
// how many were removed.
func RemoveOldLogs(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading logs dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
