package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/swarmstage/choreo/pkg/core"
)

// Show-local coordinates are planar offsets in meters from the show origin.
// For outdoor shows the origin is given as a WGS84 latitude/longitude and
// projected to EPSG:3857 once; global marker positions are then origin plus
// local offset. Geometry persisted to SQL stays in 3857 for the same reason
// the markers themselves travel as WKB: SQLite has no spatial awareness.

// ErrInvalidOrigin is returned when an origin string cannot be parsed.
var ErrInvalidOrigin = errors.New("invalid show origin provided")

// ShowOrigin georeferences an outdoor show.
type ShowOrigin struct {
	Latitude  float64
	Longitude float64
}

// ParseOrigin parses a "lat,lon" string into a show origin.
func ParseOrigin(s string) (ShowOrigin, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return ShowOrigin{}, ErrInvalidOrigin
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return ShowOrigin{}, ErrInvalidOrigin
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return ShowOrigin{}, ErrInvalidOrigin
	}
	return ShowOrigin{Latitude: lat, Longitude: lon}, nil
}

// Projected returns the origin as an EPSG:3857 point.
func (o ShowOrigin) Projected() geom.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(o.Longitude, o.Latitude, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    0,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}

// GlobalPoint maps a show-local position to an EPSG:3857 point by offsetting
// the projected origin. Altitude passes through unchanged.
func (o ShowOrigin) GlobalPoint(p core.Point3D) geom.Point {
	origin := o.Projected()
	coords, _ := origin.Coordinates()
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: coords.X + p.X, Y: coords.Y + p.Y},
			Z:    p.Z,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}
