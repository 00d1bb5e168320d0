package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
)

// OTelWriter forwards zerolog entries to an OpenTelemetry log pipeline
// through the otelslog bridge. Each JSON entry becomes one record: the
// message is the body and the remaining fields become attributes.
type OTelWriter struct {
	logger *slog.Logger
}

// NewOTelWriter creates a writer emitting records under the given
// instrumentation scope name.
func NewOTelWriter(name string, provider log.LoggerProvider) *OTelWriter {
	return &OTelWriter{
		logger: otelslog.NewLogger(name, otelslog.WithLoggerProvider(provider)),
	}
}

// Write implements io.Writer for entries without a level.
func (w *OTelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *OTelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	ctx := context.Background()
	lvl := slogLevel(level)

	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		w.logger.Log(ctx, lvl, strings.TrimSpace(string(p)))
		return len(p), nil
	}

	msg, _ := fields[zerolog.MessageFieldName].(string)
	delete(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.TimestampFieldName)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	w.logger.LogAttrs(ctx, lvl, msg, attrs...)
	return len(p), nil
}

func slogLevel(level zerolog.Level) slog.Level {
	switch level {
	case zerolog.TraceLevel:
		return slog.LevelDebug - 4
	case zerolog.DebugLevel:
		return slog.LevelDebug
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
