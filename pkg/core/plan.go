// pkg/core/plan.go
package core

import "math"

// Limits describes the capabilities reported by the planning service.
type Limits struct {
	// NumDrones is the number of drones supported by the server. Infinity is
	// allowed and means the server imposes no limit.
	NumDrones float64
	// Features lists the feature tags returned by the server, sorted and
	// de-duplicated.
	Features []string
}

// DefaultLimits returns the limits assumed when the server reports none.
func DefaultLimits() Limits {
	return Limits{NumDrones: math.Inf(1)}
}

// TransitionPlan holds per-drone timing for a planned transition. The i-th
// item of each list belongs to the drone assigned to the i-th target point.
type TransitionPlan struct {
	// StartTimes are the departure times in seconds.
	StartTimes []float64
	// Durations are the travel times in seconds.
	Durations []float64
	// Mapping is the source-per-target assignment, nil when the server did not
	// return one.
	Mapping Mapping
	// Clearance is the minimum distance between trajectories, nil when the
	// server did not return one.
	Clearance *float64
}

// TotalDuration returns the time until the last drone arrives, in seconds.
func (p TransitionPlan) TotalDuration() float64 {
	var total float64
	for i := range p.Durations {
		var start float64
		if i < len(p.StartTimes) {
			start = p.StartTimes[i]
		}
		if end := start + p.Durations[i]; end > total {
			total = end
		}
	}
	return total
}

// IsEmpty reports whether the plan contains no drones at all.
func (p TransitionPlan) IsEmpty() bool {
	return len(p.StartTimes) == 0 && len(p.Durations) == 0
}

// LandingPlan holds per-drone timing for a planned landing, in seconds.
type LandingPlan struct {
	StartTimes []float64
	Durations  []float64
}

// SmartRTHPlan holds per-drone timing and optional inner waypoints for a
// smart return-to-home maneuver.
type SmartRTHPlan struct {
	StartTimes []float64
	Durations  []float64
	// InnerPoints holds, per drone, the inner waypoints of its trajectory when
	// it is not a straight line. Each waypoint is [t, x, y, z].
	InnerPoints [][][]float64
}

// IsEmpty reports whether the plan contains no drones at all.
func (p SmartRTHPlan) IsEmpty() bool {
	return len(p.StartTimes) == 0 && len(p.Durations) == 0
}

// TotalDuration returns the time until the last drone arrives, in seconds.
func (p SmartRTHPlan) TotalDuration() float64 {
	var total float64
	for i := range p.Durations {
		var start float64
		if i < len(p.StartTimes) {
			start = p.StartTimes[i]
		}
		if end := start + p.Durations[i]; end > total {
			total = end
		}
	}
	return total
}

// ShowInfo carries the identifying metadata of a show plan, persisted by the
// storage backends alongside the computed mappings and curves.
type ShowInfo struct {
	Name      string `json:"name"`
	NumDrones int    `json:"numDrones"`
	// Latitude and Longitude georeference the show origin for outdoor shows;
	// both are zero for indoor shows.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
