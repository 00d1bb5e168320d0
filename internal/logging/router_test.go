package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestNewRouterLogger(t *testing.T) {
	rl := NewRouterLogger(zerolog.Nop())
	if rl == nil {
		t.Fatal("expected non-nil RouterLogger")
	}
}

func TestRouterLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	rl.Debug("reply routed", "prefix", "getDroneState:", "bytes", 42)

	entry := decodeEntry(t, &buf)
	if entry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", entry["level"])
	}
	if entry["message"] != "reply routed" {
		t.Errorf("expected message 'reply routed', got %v", entry["message"])
	}
	if entry["prefix"] != "getDroneState:" {
		t.Errorf("expected prefix='getDroneState:', got %v", entry["prefix"])
	}
	if entry["bytes"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected bytes=42, got %v", entry["bytes"])
	}
}

func TestRouterLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	rl.Debug("hidden")
	rl.Info("prefix registered", "prefix", "goto:")

	entry := decodeEntry(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", entry["level"])
	}
	if entry["prefix"] != "goto:" {
		t.Errorf("expected prefix='goto:', got %v", entry["prefix"])
	}
}

func TestRouterLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRouterLogger(zerolog.New(&buf))

	rl.Error("receive failed", "error", "connection refused")

	entry := decodeEntry(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", entry["level"])
	}
	if entry["error"] != "connection refused" {
		t.Errorf("expected error='connection refused', got %v", entry["error"])
	}
}

func TestToFields(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "skipped", "dangling"})

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d: %v", len(fields), fields)
	}
	if fields["a"] != 1 {
		t.Errorf("expected a=1, got %v", fields["a"])
	}
}
