package vision

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
)

// DefaultMarkerLabel labels every fiducial marker detection.
const DefaultMarkerLabel = "aruco"

// MarkerDetector reads fiducial marker frames:
//
//	{"markers": [{"id": 7, "corners": [[x, y], [x, y], [x, y], [x, y]]}]}
//
// Corners are normalized to the frame. Every marker gets the configured label.
type MarkerDetector struct {
	*source
}

type markerFrame struct {
	Markers []struct {
		ID      int          `json:"id"`
		Corners [][2]float64 `json:"corners"`
	} `json:"markers"`
}

// NewMarkerDetector creates a detector over feed.
func NewMarkerDetector(feed Feed, label string, logger zerolog.Logger) *MarkerDetector {
	if label == "" {
		label = DefaultMarkerLabel
	}
	return &MarkerDetector{source: newSource("marker", feed, markerParser(label), logger)}
}

func markerParser(label string) parseFunc {
	return func(frame []byte) ([]core.Detection, error) {
		return ParseMarkers(frame, label)
	}
}

// ParseMarkers converts a marker frame into detections centered on each
// marker's corner centroid.
func ParseMarkers(frame []byte, label string) ([]core.Detection, error) {
	var f markerFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("decoding marker frame: %w", err)
	}

	out := make([]core.Detection, 0, len(f.Markers))
	for _, m := range f.Markers {
		if len(m.Corners) != 4 {
			return nil, fmt.Errorf("marker %d has %d corners", m.ID, len(m.Corners))
		}

		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		var sumX, sumY float64
		for _, c := range m.Corners {
			sumX += c[0]
			sumY += c[1]
			minX, maxX = math.Min(minX, c[0]), math.Max(maxX, c[0])
			minY, maxY = math.Min(minY, c[1]), math.Max(maxY, c[1])
		}

		out = append(out, core.Detection{
			Label:      label,
			Center:     core.ScreenPoint{X: sumX / 4, Y: sumY / 4},
			Width:      maxX - minX,
			Height:     maxY - minY,
			Confidence: 1,
		})
	}
	return out, nil
}
