package vision

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dronegrade/harness/pkg/core"
	"github.com/rs/zerolog"
)

// ModelDetector reads object-detection model output, one row per object:
//
//	label, x_center, y_center, width, height, confidence
//
// Coordinates are normalized to the frame.
type ModelDetector struct {
	*source
}

// NewModelDetector creates a detector over feed.
func NewModelDetector(feed Feed, logger zerolog.Logger) *ModelDetector {
	return &ModelDetector{source: newSource("model", feed, ParseModelRows, logger)}
}

// ParseModelRows parses one frame of model output. An empty frame is an
// empty batch.
func ParseModelRows(frame []byte) ([]core.Detection, error) {
	r := csv.NewReader(bytes.NewReader(frame))
	r.FieldsPerRecord = 6
	r.TrimLeadingSpace = true
	r.Comment = '#'

	var out []core.Detection
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		var nums [5]float64
		for i := range nums {
			nums[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %q: %w", strings.Join(rec, ","), err)
			}
		}

		out = append(out, core.Detection{
			Label:      strings.TrimSpace(rec[0]),
			Center:     core.ScreenPoint{X: nums[0], Y: nums[1]},
			Width:      nums[2],
			Height:     nums[3],
			Confidence: nums[4],
		})
	}
}
