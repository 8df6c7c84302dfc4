// Package geo provides the proximity geometry used by safety checks and
// takeoff/landing grouping: global closest-pair and threshold-pair queries
// over 3D point sets, plus WKB encoding and show-origin georeferencing for
// the storage layer.
package geo

import (
	"math"
	"sort"

	"github.com/swarmstage/choreo/pkg/core"
)

// bruteForceLimit is the subproblem size below which the divide-and-conquer
// recursion switches to an all-pairs scan.
const bruteForceLimit = 100

// PointPair is an unordered pair of points closer than some threshold.
type PointPair struct {
	P core.Point3D
	Q core.Point3D
}

// ClosestPair returns the two points of the set with the globally smallest
// Euclidean distance, and that distance. For fewer than two points it returns
// nil, nil and +Inf; coincident points are valid and yield distance 0.
//
// The set is sorted along its principal axis (the axis of greatest spread)
// and processed with the classic divide-and-conquer scheme, which keeps the
// average cost at O(n log n) against the O(n^2) brute force.
func ClosestPair(points core.PointSet) (*core.Point3D, *core.Point3D, float64) {
	if len(points) < 2 {
		return nil, nil, math.Inf(1)
	}
	sorted, axis := reorderAlongPrincipalAxis(points)
	p, q, distSq := closestPairStep(sorted, axis)
	if p == nil {
		return nil, nil, math.Inf(1)
	}
	return p, q, math.Sqrt(distSq)
}

// AllPairsWithin returns every unordered pair of points whose Euclidean
// distance is strictly less than threshold. The result may be empty and
// carries no duplicates.
//
// Points are sorted along the principal axis once; for each point the forward
// scan stops as soon as the axis difference alone reaches the threshold.
func AllPairsWithin(points core.PointSet, threshold float64) []PointPair {
	var result []PointPair
	if len(points) < 2 || threshold <= 0 {
		return result
	}

	sorted, axis := reorderAlongPrincipalAxis(points)
	thresholdSq := threshold * threshold
	for i := range sorted {
		maxCoord := sorted[i].Axis(axis) + threshold
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Axis(axis) >= maxCoord {
				break
			}
			if sorted[i].DistanceSqTo(sorted[j]) < thresholdSq {
				result = append(result, PointPair{P: sorted[i], Q: sorted[j]})
			}
		}
	}
	return result
}

// reorderAlongPrincipalAxis returns a copy of the points sorted along the
// axis with the greatest coordinate range, and the index of that axis.
func reorderAlongPrincipalAxis(points core.PointSet) (core.PointSet, int) {
	axis := principalAxis(points)
	sorted := points.Clone()
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Axis(axis) < sorted[j].Axis(axis)
	})
	return sorted, axis
}

func principalAxis(points core.PointSet) int {
	best, bestRange := 0, math.Inf(-1)
	for axis := 0; axis < 3; axis++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range points {
			v := p.Axis(axis)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if r := hi - lo; r > bestRange {
			best, bestRange = axis, r
		}
	}
	return best
}

// closestPairStep operates on points already sorted along the principal axis
// and returns squared distances to avoid taking square roots in the recursion.
func closestPairStep(points core.PointSet, axis int) (*core.Point3D, *core.Point3D, float64) {
	if len(points) < 2 {
		return nil, nil, math.Inf(1)
	}
	if len(points) <= bruteForceLimit {
		return bruteForcePair(points)
	}

	mid := len(points) / 2
	midpoint := points[mid].Axis(axis)

	p1, q1, distSq1 := closestPairStep(points[:mid], axis)
	p2, q2, distSq2 := closestPairStep(points[mid:], axis)

	p, q, distSq := p1, q1, distSq1
	if distSq2 < distSq {
		p, q, distSq = p2, q2, distSq2
	}

	p3, q3, distSqSplit := closestSplitPair(points, axis, mid, midpoint, math.Sqrt(distSq))
	if distSqSplit < distSq {
		return p3, q3, distSqSplit
	}
	return p, q, distSq
}

// closestSplitPair scans the band of width 2*dist straddling the split line
// and compares points across the split only. The band boundaries are found by
// binary search on the sorted axis coordinates; an empty side yields the +Inf
// sentinel.
func closestSplitPair(points core.PointSet, axis, mid int, midpoint, dist float64) (*core.Point3D, *core.Point3D, float64) {
	lo := sort.Search(len(points), func(i int) bool {
		return points[i].Axis(axis) >= midpoint-dist
	})
	hi := sort.Search(len(points), func(i int) bool {
		return points[i].Axis(axis) > midpoint+dist
	})
	if lo == mid || hi == mid {
		return nil, nil, math.Inf(1)
	}

	var bp, bq *core.Point3D
	best := math.Inf(1)
	for i := lo; i < mid; i++ {
		for j := mid; j < hi; j++ {
			if d := points[i].DistanceSqTo(points[j]); d < best {
				bp, bq, best = &points[i], &points[j], d
			}
		}
	}
	return bp, bq, best
}

// bruteForcePair compares all distinct pairs, treating the diagonal as +Inf.
func bruteForcePair(points core.PointSet) (*core.Point3D, *core.Point3D, float64) {
	var bp, bq *core.Point3D
	best := math.Inf(1)
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := points[i].DistanceSqTo(points[j]); d < best {
				bp, bq, best = &points[i], &points[j], d
			}
		}
	}
	return bp, bq, best
}
