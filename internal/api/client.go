// Package api talks to the remote drone show planning service. All planning
// operations are single-attempt POST calls; a failure aborts the current
// scheduling run and the caller decides whether to re-invoke.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/swarmstage/choreo/pkg/core"
)

// protocolVersion is sent with every request and checked on every response.
const protocolVersion = 1

// ServiceError wraps a failure of a remote planning operation with the name
// of the operation that was in flight.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("planning service %s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Client handles communication with the planning service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new planning service client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the planning service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// MatchPoints asks the service for an optimal source-to-target assignment.
// The result is drone-indexed: element i holds the target marker assigned to
// source point i, or core.Unassigned. The second result is the minimum
// clearance of the planned trajectories when the service reports one.
func (c *Client) MatchPoints(ctx context.Context, source, target core.PointSet, radius float64) (core.Mapping, *float64, error) {
	request := struct {
		Version int          `json:"version"`
		Source  [][3]float64 `json:"source"`
		Target  [][3]float64 `json:"target"`
		Radius  float64      `json:"radius,omitempty"`
	}{
		Version: protocolVersion,
		Source:  encodePoints(source),
		Target:  encodePoints(target),
		Radius:  radius,
	}
	var response struct {
		Version   int      `json:"version"`
		Mapping   []*int   `json:"mapping"`
		Clearance *float64 `json:"clearance"`
	}
	if err := c.post(ctx, "match-points", "operations/match-points", request, &response); err != nil {
		return nil, nil, err
	}
	if err := checkVersion("match-points", response.Version); err != nil {
		return nil, nil, err
	}
	return invertMapping(response.Mapping, len(source)), response.Clearance, nil
}

// DecompositionMethod selects how DecomposePoints splits a point set.
type DecompositionMethod string

const (
	DecompositionGreedy   DecompositionMethod = "greedy"
	DecompositionBalanced DecompositionMethod = "balanced"
)

// DecomposePoints splits a point set into groups such that points within one
// group are at least minDistance apart. Element i of the result is the group
// ID of point i.
func (c *Client) DecomposePoints(ctx context.Context, points core.PointSet, minDistance float64, method DecompositionMethod) ([]int, error) {
	request := struct {
		Version     int                 `json:"version"`
		Points      [][3]float64        `json:"points"`
		MinDistance float64             `json:"min_distance"`
		Method      DecompositionMethod `json:"method"`
	}{
		Version:     protocolVersion,
		Points:      encodePoints(points),
		MinDistance: minDistance,
		Method:      method,
	}
	var response struct {
		Version int   `json:"version"`
		Groups  []int `json:"groups"`
	}
	if err := c.post(ctx, "decompose", "operations/decompose", request, &response); err != nil {
		return nil, err
	}
	if err := checkVersion("decompose", response.Version); err != nil {
		return nil, err
	}
	if len(response.Groups) != len(points) {
		return nil, &ServiceError{
			Op:  "decompose",
			Err: fmt.Errorf("got %d group IDs for %d points", len(response.Groups), len(points)),
		}
	}
	return response.Groups, nil
}

// LandingParameters tunes PlanLanding.
type LandingParameters struct {
	// MinDistance is the minimum allowed distance between drones landing at
	// the same time, in meters.
	MinDistance float64
	// Velocity is the descent velocity in m/s.
	Velocity float64
	// TargetAltitude is the altitude to descend to, in meters.
	TargetAltitude float64
	// SpindownTime is the number of seconds a drone keeps its landing slot
	// occupied after touchdown.
	SpindownTime float64
}

// PlanLanding schedules a conflict-free landing for the given points. Start
// times and durations in the result are in seconds.
func (c *Client) PlanLanding(ctx context.Context, points core.PointSet, params LandingParameters) (*core.LandingPlan, error) {
	request := struct {
		Version        int          `json:"version"`
		Points         [][3]float64 `json:"points"`
		MinDistance    float64      `json:"min_distance"`
		Velocity       float64      `json:"velocity"`
		TargetAltitude float64      `json:"target_altitude"`
		SpindownTime   float64      `json:"spindown_time"`
	}{
		Version:        protocolVersion,
		Points:         encodePoints(points),
		MinDistance:    params.MinDistance,
		Velocity:       params.Velocity,
		TargetAltitude: params.TargetAltitude,
		SpindownTime:   params.SpindownTime,
	}
	var response struct {
		Version    int       `json:"version"`
		StartTimes []float64 `json:"start_times"`
		Durations  []float64 `json:"durations"`
	}
	if err := c.post(ctx, "plan-landing", "operations/plan-landing", request, &response); err != nil {
		return nil, err
	}
	if err := checkVersion("plan-landing", response.Version); err != nil {
		return nil, err
	}
	return &core.LandingPlan{StartTimes: response.StartTimes, Durations: response.Durations}, nil
}

// TransitionParameters tunes PlanTransition.
type TransitionParameters struct {
	// MaxVelocityXY and MaxVelocityZ cap drone speeds in m/s.
	MaxVelocityXY float64
	MaxVelocityZ  float64
	// MaxAcceleration caps acceleration in m/s^2; zero leaves it to the
	// service default.
	MaxAcceleration float64
	// MatchingMode overrides the service's matching strategy when non-empty.
	MatchingMode string
}

// PlanTransition asks the service for a full transition plan between two
// formations, including the assignment and per-drone timing.
func (c *Client) PlanTransition(ctx context.Context, source, target core.PointSet, params TransitionParameters) (*core.TransitionPlan, error) {
	request := struct {
		Version         int          `json:"version"`
		Source          [][3]float64 `json:"source"`
		Target          [][3]float64 `json:"target"`
		MaxVelocityXY   float64      `json:"max_velocity_xy"`
		MaxVelocityZ    float64      `json:"max_velocity_z"`
		MaxAcceleration float64      `json:"max_acceleration,omitempty"`
		MatchingMode    string       `json:"matching_mode,omitempty"`
	}{
		Version:         protocolVersion,
		Source:          encodePoints(source),
		Target:          encodePoints(target),
		MaxVelocityXY:   params.MaxVelocityXY,
		MaxVelocityZ:    params.MaxVelocityZ,
		MaxAcceleration: params.MaxAcceleration,
		MatchingMode:    params.MatchingMode,
	}
	var response struct {
		Version    int       `json:"version"`
		StartTimes []float64 `json:"start_times"`
		Durations  []float64 `json:"durations"`
		Mapping    []*int    `json:"mapping"`
		Clearance  *float64  `json:"clearance"`
	}
	if err := c.post(ctx, "plan-transition", "operations/plan-transition", request, &response); err != nil {
		return nil, err
	}
	if err := checkVersion("plan-transition", response.Version); err != nil {
		return nil, err
	}
	return &core.TransitionPlan{
		StartTimes: response.StartTimes,
		Durations:  response.Durations,
		Mapping:    invertMapping(response.Mapping, len(source)),
		Clearance:  response.Clearance,
	}, nil
}

// SmartRTHParameters tunes PlanSmartRTH.
type SmartRTHParameters struct {
	MaxVelocityXY   float64
	MaxVelocityZ    float64
	MaxAcceleration float64
	MinDistance     float64
}

// PlanSmartRTH plans a collision-free return-to-home maneuver from the given
// source points to the given target points.
func (c *Client) PlanSmartRTH(ctx context.Context, source, target core.PointSet, params SmartRTHParameters) (*core.SmartRTHPlan, error) {
	request := struct {
		Version         int          `json:"version"`
		Source          [][3]float64 `json:"source"`
		Target          [][3]float64 `json:"target"`
		MaxVelocityXY   float64      `json:"max_velocity_xy"`
		MaxVelocityZ    float64      `json:"max_velocity_z"`
		MaxAcceleration float64      `json:"max_acceleration,omitempty"`
		MinDistance     float64      `json:"min_distance"`
	}{
		Version:         protocolVersion,
		Source:          encodePoints(source),
		Target:          encodePoints(target),
		MaxVelocityXY:   params.MaxVelocityXY,
		MaxVelocityZ:    params.MaxVelocityZ,
		MaxAcceleration: params.MaxAcceleration,
		MinDistance:     params.MinDistance,
	}
	var response struct {
		Version     int           `json:"version"`
		StartTimes  []float64     `json:"start_times"`
		Durations   []float64     `json:"durations"`
		InnerPoints [][][]float64 `json:"inner_points"`
	}
	if err := c.post(ctx, "plan-smart-rth", "operations/plan-smart-rth", request, &response); err != nil {
		return nil, err
	}
	if err := checkVersion("plan-smart-rth", response.Version); err != nil {
		return nil, err
	}
	return &core.SmartRTHPlan{
		StartTimes:  response.StartTimes,
		Durations:   response.Durations,
		InnerPoints: response.InnerPoints,
	}, nil
}

// Limits queries the capabilities granted by the current API key.
func (c *Client) Limits(ctx context.Context) (*core.Limits, error) {
	request := struct {
		Version int `json:"version"`
	}{Version: protocolVersion}
	var response struct {
		Version int `json:"version"`
		Limits  struct {
			NumDrones *float64 `json:"num_drones"`
			Features  []string `json:"features"`
		} `json:"limits"`
	}
	if err := c.post(ctx, "limits", "queries/limits", request, &response); err != nil {
		return nil, err
	}
	if err := checkVersion("limits", response.Version); err != nil {
		return nil, err
	}

	limits := core.DefaultLimits()
	if response.Limits.NumDrones != nil {
		limits.NumDrones = *response.Limits.NumDrones
	}
	if response.Limits.Features != nil {
		limits.Features = response.Limits.Features
	}
	return &limits, nil
}

// post sends one JSON request to the given endpoint and decodes the JSON
// response into out. Any failure is wrapped into a ServiceError carrying op.
func (c *Client) post(ctx context.Context, op, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &ServiceError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return &ServiceError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ServiceError{
			Op:  op,
			Err: fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func checkVersion(op string, version int) error {
	if version != protocolVersion {
		return &ServiceError{
			Op:  op,
			Err: fmt.Errorf("unexpected response version %d, want %d", version, protocolVersion),
		}
	}
	return nil
}

// invertMapping converts the service's target-indexed assignment, where
// element j names the source point assigned to target j, into the
// drone-indexed form used everywhere else.
func invertMapping(targetIndexed []*int, numDrones int) core.Mapping {
	mapping := core.NewMapping(numDrones)
	for targetIdx, src := range targetIndexed {
		if src != nil && *src >= 0 && *src < numDrones {
			mapping[*src] = targetIdx
		}
	}
	return mapping
}

func encodePoints(points core.PointSet) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{round6(p.X), round6(p.Y), round6(p.Z)}
	}
	return out
}

// round6 trims coordinates to micrometer precision so identical inputs
// serialize identically regardless of upstream float noise.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
