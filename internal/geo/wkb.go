package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/swarmstage/choreo/pkg/core"
)

// MarshalPointsWKB encodes a point set as a WKB MultiPoint (XYZ) so that the
// SQL storage backends can keep formation geometry in plain BLOB columns.
func MarshalPointsWKB(points core.PointSet) []byte {
	pts := make([]geom.Point, len(points))
	for i, p := range points {
		pts[i] = geom.NewPoint(
			geom.Coordinates{
				XY:   geom.XY{X: p.X, Y: p.Y},
				Z:    p.Z,
				Type: geom.CoordinatesType(geom.DimXYZ),
			},
		)
	}
	return geom.NewMultiPoint(pts).AsBinary()
}

// UnmarshalPointsWKB decodes a WKB MultiPoint back into a point set,
// preserving marker order.
func UnmarshalPointsWKB(data []byte) (core.PointSet, error) {
	g, err := geom.UnmarshalWKB(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode WKB geometry: %w", err)
	}
	if g.Type() != geom.TypeMultiPoint {
		return nil, fmt.Errorf("expected MultiPoint geometry, got %s", g.Type())
	}
	mp := g.MustAsMultiPoint()

	points := make(core.PointSet, mp.NumPoints())
	for i := 0; i < mp.NumPoints(); i++ {
		coords, ok := mp.PointN(i).Coordinates()
		if !ok {
			return nil, fmt.Errorf("empty point at index %d in MultiPoint", i)
		}
		points[i] = core.Point3D{X: coords.X, Y: coords.Y, Z: coords.Z}
	}
	return points, nil
}
