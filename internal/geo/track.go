package geo

import (
	"fmt"

	"github.com/dronegrade/harness/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Track builds the flight path as an EPSG:3857 line string.
func (g *Georef) Track(path []core.Coordinate) (geom.LineString, error) {
	if len(path) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(path))
	}

	flatCoords := make([]float64, 0, len(path)*3)
	for _, c := range path {
		x, y, z := g.Mercator(c)
		flatCoords = append(flatCoords, x, y, z)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXYZ)
	return geom.NewLineString(seq), nil
}

// Actors builds a multi point of spawned actor positions.
func (g *Georef) Actors(positions []core.Coordinate) geom.MultiPoint {
	points := make([]geom.Point, len(positions))
	for i, c := range positions {
		points[i] = g.Point(c)
	}
	return geom.NewMultiPoint(points)
}
