package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/dronegrade/harness/internal/protocol"
	"github.com/dronegrade/harness/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Engine coordinates are centimeters relative to the level origin, X east and Y north.
// Stored geometries are always EPSG:3857 with Z in meters above the origin.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Georef places the engine origin on the globe.
type Georef struct {
	originX, originY float64
	scale            float64
	toLonLat         func(a, b, c float64) (float64, float64, float64)
}

// NewGeoref creates a Georef for an origin given in EPSG:4326 degrees.
func NewGeoref(originLongitude, originLatitude float64) *Georef {
	epsg := wgs84.EPSG()
	x, y, _ := epsg.Transform(4326, 3857)(originLongitude, originLatitude, 0)
	return &Georef{
		originX: x,
		originY: y,
		// web mercator stretches ground distances by 1/cos(lat)
		scale:    1 / math.Cos(originLatitude*math.Pi/180),
		toLonLat: epsg.Transform(3857, 4326),
	}
}

// Mercator returns the EPSG:3857 position of an engine coordinate.
func (g *Georef) Mercator(c core.Coordinate) (x, y, z float64) {
	x = g.originX + c.X/protocol.CentimetersPerMeter*g.scale
	y = g.originY + c.Y/protocol.CentimetersPerMeter*g.scale
	return x, y, c.Z / protocol.CentimetersPerMeter
}

// LonLat returns longitude, latitude and altitude in meters of an engine coordinate.
func (g *Georef) LonLat(c core.Coordinate) (lon, lat, alt float64) {
	x, y, z := g.Mercator(c)
	lon, lat, _ = g.toLonLat(x, y, 0)
	return lon, lat, z
}

// Point converts an engine coordinate to an EPSG:3857 point.
func (g *Georef) Point(c core.Coordinate) geom.Point {
	x, y, z := g.Mercator(c)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    z,
			Type: geom.DimXYZ,
		},
	)
}

// CoordinateFromString parses "x,y" or "x,y,z" engine coordinates.
func CoordinateFromString(coords string) (core.Coordinate, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	var vals [3]float64
	for i := 0; i < len(coordsSplit) && i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[i]), 64)
		if err != nil {
			return core.Coordinate{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	return core.Coordinate{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
