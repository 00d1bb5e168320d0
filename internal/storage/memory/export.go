// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dronegrade/harness/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	ID        string             `json:"id"`
	StartTime time.Time          `json:"startTime"`
	Grading   core.Grading       `json:"grading"`
	Result    core.SessionResult `json:"result"`
	Actors    [][3]float64       `json:"actors"` // lon, lat, alt
	Ticks     []TickJSON         `json:"ticks"`
	Events    []EventJSON        `json:"events"`
	Track     TrackJSON          `json:"track"`
}

// TickJSON is one per-second score sample
type TickJSON struct {
	ElapsedMs  int64   `json:"elapsedMs"`
	Points     float64 `json:"points"`
	Detections int     `json:"detections"`
}

// EventJSON is one score change
type EventJSON struct {
	ElapsedMs int64   `json:"elapsedMs"`
	Kind      string  `json:"kind"`
	Delta     float64 `json:"delta"`
	Points    float64 `json:"points"`
	Label     string  `json:"label,omitempty"`
}

// TrackJSON holds the flight path both as WKT (EPSG:3857) and as
// lon/lat/alt triples
type TrackJSON struct {
	WKT    string       `json:"wkt,omitempty"`
	LonLat [][3]float64 `json:"lonLat"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	id := b.session.ID
	if len(id) > 8 {
		id = id[:8]
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("session_%s_%s.json.gz", timestamp, id)
	} else {
		filename = fmt.Sprintf("session_%s_%s.json", timestamp, id)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		ID:        b.session.ID,
		StartTime: b.session.StartTime,
		Grading:   b.session.Grading,
		Actors:    make([][3]float64, 0, len(b.session.Actors)),
		Ticks:     make([]TickJSON, 0, len(b.ticks)),
		Events:    make([]EventJSON, 0, len(b.events)),
		Track:     TrackJSON{LonLat: make([][3]float64, 0, len(b.track))},
	}
	if b.result != nil {
		export.Result = *b.result
	}

	for _, a := range b.session.Actors {
		lon, lat, alt := b.georef.LonLat(a)
		export.Actors = append(export.Actors, [3]float64{lon, lat, alt})
	}

	for _, t := range b.ticks {
		export.Ticks = append(export.Ticks, TickJSON{
			ElapsedMs:  t.Elapsed.Milliseconds(),
			Points:     t.Points,
			Detections: t.Detections,
		})
	}

	for _, e := range b.events {
		export.Events = append(export.Events, EventJSON{
			ElapsedMs: e.Elapsed.Milliseconds(),
			Kind:      string(e.Kind),
			Delta:     e.Delta,
			Points:    e.Points,
			Label:     e.Label,
		})
	}

	path := make([]core.Coordinate, 0, len(b.track))
	for _, s := range b.track {
		lon, lat, alt := b.georef.LonLat(s.Position)
		export.Track.LonLat = append(export.Track.LonLat, [3]float64{lon, lat, alt})
		path = append(path, s.Position)
	}
	if ls, err := b.georef.Track(path); err == nil {
		export.Track.WKT = ls.AsText()
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
