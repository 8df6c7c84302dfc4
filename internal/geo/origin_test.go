package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/swarmstage/choreo/pkg/core"
)

func TestParseOrigin_Valid(t *testing.T) {
	origin, err := ParseOrigin("47.4979, 19.0402")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if origin.Latitude != 47.4979 {
		t.Errorf("expected latitude 47.4979, got %f", origin.Latitude)
	}
	if origin.Longitude != 19.0402 {
		t.Errorf("expected longitude 19.0402, got %f", origin.Longitude)
	}
}

func TestParseOrigin_Invalid(t *testing.T) {
	for _, input := range []string{"", "47.5", "a,b", "1,2,3"} {
		if _, err := ParseOrigin(input); !errors.Is(err, ErrInvalidOrigin) {
			t.Errorf("input %q: expected ErrInvalidOrigin, got %v", input, err)
		}
	}
}

func TestShowOrigin_ProjectedNullIsland(t *testing.T) {
	origin := ShowOrigin{Latitude: 0, Longitude: 0}
	coords, ok := origin.Projected().Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 || math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected (0,0) projection for null island, got (%f,%f)", coords.X, coords.Y)
	}
}

func TestShowOrigin_GlobalPointOffsets(t *testing.T) {
	origin := ShowOrigin{Latitude: 0, Longitude: 0}
	coords, ok := origin.GlobalPoint(core.Point3D{X: 10, Y: -5, Z: 30}).Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X-10) > 1e-6 {
		t.Errorf("expected X=10, got %f", coords.X)
	}
	if math.Abs(coords.Y+5) > 1e-6 {
		t.Errorf("expected Y=-5, got %f", coords.Y)
	}
	if coords.Z != 30 {
		t.Errorf("expected Z=30, got %f", coords.Z)
	}
}

func TestPointsWKB_RoundTrip(t *testing.T) {
	points := core.PointSet{
		{X: 1.5, Y: -2.25, Z: 10},
		{X: 0, Y: 0, Z: 0},
		{X: 100, Y: 50, Z: 6},
	}
	decoded, err := UnmarshalPointsWKB(MarshalPointsWKB(points))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(decoded))
	}
	for i := range points {
		if decoded[i] != points[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, points[i], decoded[i])
		}
	}
}
