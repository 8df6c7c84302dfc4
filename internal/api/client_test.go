package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/swarmstage/choreo/pkg/core"
)

func TestHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, "")
	if err := client.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "")
	if err := client.Healthcheck(context.Background()); err == nil {
		t.Error("expected error for unavailable service")
	}
}

func TestMatchPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/operations/match-points" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("unexpected API key header: %q", got)
		}

		var request struct {
			Version int          `json:"version"`
			Source  [][3]float64 `json:"source"`
			Target  [][3]float64 `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if request.Version != 1 {
			t.Errorf("unexpected request version: %d", request.Version)
		}
		if len(request.Source) != 3 || len(request.Target) != 2 {
			t.Errorf("unexpected point counts: %d source, %d target", len(request.Source), len(request.Target))
		}

		// Target 0 gets source 2, target 1 is unassigned.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":   1,
			"mapping":   []any{2, nil},
			"clearance": 3.5,
		})
	}))
	defer server.Close()

	client := New(server.URL, "secret")
	source := core.PointSet{{X: 0}, {X: 1}, {X: 2}}
	target := core.PointSet{{X: 5}, {X: 6}}

	mapping, clearance, err := client.MatchPoints(context.Background(), source, target, 0)
	if err != nil {
		t.Fatalf("MatchPoints failed: %v", err)
	}

	want := core.Mapping{core.Unassigned, core.Unassigned, 0}
	if !mapping.Equal(want) {
		t.Errorf("mapping = %v, want %v", mapping, want)
	}
	if clearance == nil || *clearance != 3.5 {
		t.Errorf("clearance = %v, want 3.5", clearance)
	}
}

func TestMatchPointsVersionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"version": 2, "mapping": []any{}})
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, _, err := client.MatchPoints(context.Background(), core.PointSet{{}}, core.PointSet{{}}, 0)
	if err == nil {
		t.Fatal("expected error for version mismatch")
	}

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error is %T, want *ServiceError", err)
	}
	if serviceErr.Op != "match-points" {
		t.Errorf("op = %q, want match-points", serviceErr.Op)
	}
}

func TestDecomposePoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/operations/decompose" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var request struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&request)
		if request.Method != "balanced" {
			t.Errorf("method = %q, want balanced", request.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version": 1,
			"groups":  []int{0, 1, 0},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	points := core.PointSet{{X: 0}, {X: 1}, {X: 2}}
	groups, err := client.DecomposePoints(context.Background(), points, 3, DecompositionBalanced)
	if err != nil {
		t.Fatalf("DecomposePoints failed: %v", err)
	}
	if len(groups) != 3 || groups[0] != 0 || groups[1] != 1 || groups[2] != 0 {
		t.Errorf("groups = %v, want [0 1 0]", groups)
	}
}

func TestDecomposePointsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"version": 1, "groups": []int{0}})
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.DecomposePoints(context.Background(), core.PointSet{{}, {}}, 3, DecompositionGreedy)
	if err == nil {
		t.Fatal("expected error for mismatched group count")
	}
}

func TestPlanLanding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/operations/plan-landing" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":     1,
			"start_times": []float64{0, 2.5},
			"durations":   []float64{10, 7.5},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	plan, err := client.PlanLanding(context.Background(), core.PointSet{{Z: 10}, {Z: 8}}, LandingParameters{
		MinDistance:    3,
		Velocity:       1,
		TargetAltitude: 0,
		SpindownTime:   5,
	})
	if err != nil {
		t.Fatalf("PlanLanding failed: %v", err)
	}
	if len(plan.StartTimes) != 2 || plan.StartTimes[1] != 2.5 {
		t.Errorf("start times = %v", plan.StartTimes)
	}
	if len(plan.Durations) != 2 || plan.Durations[0] != 10 {
		t.Errorf("durations = %v", plan.Durations)
	}
}

func TestPlanTransition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":     1,
			"start_times": []float64{0, 1},
			"durations":   []float64{5, 5},
			"mapping":     []any{1, 0},
			"clearance":   2.0,
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	source := core.PointSet{{X: 0}, {X: 1}}
	target := core.PointSet{{X: 10}, {X: 11}}
	plan, err := client.PlanTransition(context.Background(), source, target, TransitionParameters{
		MaxVelocityXY: 4,
		MaxVelocityZ:  2,
	})
	if err != nil {
		t.Fatalf("PlanTransition failed: %v", err)
	}
	if !plan.Mapping.Equal(core.Mapping{1, 0}) {
		t.Errorf("mapping = %v, want [1 0]", plan.Mapping)
	}
	if plan.Clearance == nil || *plan.Clearance != 2.0 {
		t.Errorf("clearance = %v, want 2.0", plan.Clearance)
	}
}

func TestLimits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/queries/limits" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version": 1,
			"limits": map[string]any{
				"num_drones": 100,
				"features":   []string{"plan-smart-rth"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	limits, err := client.Limits(context.Background())
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}
	if limits.NumDrones != 100 {
		t.Errorf("num drones = %v, want 100", limits.NumDrones)
	}
	if len(limits.Features) != 1 || limits.Features[0] != "plan-smart-rth" {
		t.Errorf("features = %v", limits.Features)
	}
}

func TestServerErrorSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many drones", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.Limits(context.Background())
	if err == nil {
		t.Fatal("expected error for bad request")
	}

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error is %T, want *ServiceError", err)
	}
}
