// pkg/core/point.go
package core

// Point3D is a position in show-local coordinates, in meters.
type Point3D struct {
	X float64
	Y float64
	Z float64
}

// Axis returns the coordinate along the given axis index (0 = X, 1 = Y, 2 = Z).
func (p Point3D) Axis(axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// DistanceSqTo returns the squared Euclidean distance between p and q.
func (p Point3D) DistanceSqTo(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// PointSet is an ordered, index-addressable sequence of points. The index is
// the sole handle used downstream: drone index i corresponds to slot i.
type PointSet []Point3D

// Clone returns an independent copy of the point set.
func (ps PointSet) Clone() PointSet {
	if ps == nil {
		return nil
	}
	out := make(PointSet, len(ps))
	copy(out, ps)
	return out
}
