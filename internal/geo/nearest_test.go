package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/swarmstage/choreo/pkg/core"
)

func bruteForceClosest(points core.PointSet) float64 {
	best := math.Inf(1)
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := points[i].DistanceSqTo(points[j]); d < best {
				best = d
			}
		}
	}
	return math.Sqrt(best)
}

func randomPoints(n int, seed int64) core.PointSet {
	rng := rand.New(rand.NewSource(seed))
	points := make(core.PointSet, n)
	for i := range points {
		points[i] = core.Point3D{
			X: rng.Float64() * 100,
			Y: rng.Float64() * 40,
			Z: rng.Float64() * 10,
		}
	}
	return points
}

func TestClosestPair_Empty(t *testing.T) {
	p, q, dist := ClosestPair(nil)
	if p != nil || q != nil {
		t.Error("expected nil points for empty set")
	}
	if !math.IsInf(dist, 1) {
		t.Errorf("expected +Inf distance, got %f", dist)
	}
}

func TestClosestPair_SinglePoint(t *testing.T) {
	p, q, dist := ClosestPair(core.PointSet{{X: 1, Y: 2, Z: 3}})
	if p != nil || q != nil {
		t.Error("expected nil points for single-point set")
	}
	if !math.IsInf(dist, 1) {
		t.Errorf("expected +Inf distance, got %f", dist)
	}
}

func TestClosestPair_TwoPoints(t *testing.T) {
	points := core.PointSet{{X: 0, Y: 0, Z: 0}, {X: 3, Y: 4, Z: 0}}
	p, q, dist := ClosestPair(points)
	if p == nil || q == nil {
		t.Fatal("expected a pair")
	}
	if dist != 5 {
		t.Errorf("expected distance 5, got %f", dist)
	}
}

func TestClosestPair_CoincidentPoints(t *testing.T) {
	points := core.PointSet{
		{X: 1, Y: 1, Z: 1},
		{X: 5, Y: 5, Z: 5},
		{X: 1, Y: 1, Z: 1},
	}
	_, _, dist := ClosestPair(points)
	if dist != 0 {
		t.Errorf("expected distance 0 for coincident points, got %f", dist)
	}
}

func TestClosestPair_MatchesBruteForce(t *testing.T) {
	// Sizes straddling the brute-force cutoff so the split-band scan runs.
	for _, n := range []int{3, 10, 50, 99, 100, 101, 150, 300, 500} {
		points := randomPoints(n, int64(n))
		_, _, got := ClosestPair(points)
		want := bruteForceClosest(points)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("n=%d: expected distance %f, got %f", n, want, got)
		}
	}
}

func TestClosestPair_ClusteredAroundSplit(t *testing.T) {
	// Closest pair straddles the median on the principal axis.
	points := randomPoints(400, 7)
	points = append(points,
		core.Point3D{X: 49.9999, Y: 20, Z: 5},
		core.Point3D{X: 50.0001, Y: 20, Z: 5},
	)
	p, q, dist := ClosestPair(points)
	if p == nil || q == nil {
		t.Fatal("expected a pair")
	}
	want := bruteForceClosest(points)
	if math.Abs(dist-want) > 1e-9 {
		t.Errorf("expected distance %f, got %f", want, dist)
	}
}

func TestAllPairsWithin_Empty(t *testing.T) {
	if pairs := AllPairsWithin(nil, 10); len(pairs) != 0 {
		t.Errorf("expected no pairs, got %d", len(pairs))
	}
	if pairs := AllPairsWithin(core.PointSet{{X: 1}}, 10); len(pairs) != 0 {
		t.Errorf("expected no pairs, got %d", len(pairs))
	}
}

func TestAllPairsWithin_StrictThreshold(t *testing.T) {
	points := core.PointSet{
		{X: 0, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
	}
	// Distance exactly equal to the threshold must be excluded.
	pairs := AllPairsWithin(points, 2)
	if len(pairs) != 0 {
		t.Errorf("expected no pairs at exact threshold, got %d", len(pairs))
	}

	pairs = AllPairsWithin(points, 2.5)
	if len(pairs) != 1 {
		t.Fatalf("expected one pair, got %d", len(pairs))
	}
}

func TestAllPairsWithin_MatchesBruteForce(t *testing.T) {
	const threshold = 8.0
	points := randomPoints(200, 42)

	pairs := AllPairsWithin(points, threshold)

	want := 0
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if math.Sqrt(points[i].DistanceSqTo(points[j])) < threshold {
				want++
			}
		}
	}
	if len(pairs) != want {
		t.Errorf("expected %d pairs, got %d", want, len(pairs))
	}
	for _, pair := range pairs {
		if d := math.Sqrt(pair.P.DistanceSqTo(pair.Q)); d >= threshold {
			t.Errorf("pair at distance %f exceeds threshold", d)
		}
	}
}
