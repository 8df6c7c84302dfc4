package scheduler

import (
	"context"
	"fmt"
	"math"

	"github.com/swarmstage/choreo/internal/api"
	"github.com/swarmstage/choreo/internal/geo"
	"github.com/swarmstage/choreo/internal/storyboard"
	"github.com/swarmstage/choreo/pkg/core"
)

// TakeoffParameters tunes PlanTakeoff.
type TakeoffParameters struct {
	// StartFrame is the first frame of the takeoff maneuver.
	StartFrame int
	// Velocity is the average vertical velocity in m/s.
	Velocity float64
	// Altitude is the base altitude to take off to, in meters.
	Altitude float64
	// LayerHeight is the altitude difference between takeoff layers when
	// drones share a takeoff slot within the safety distance.
	LayerHeight float64
	// MinDistance is the proximity threshold below which drones must be
	// separated into layers.
	MinDistance float64
	// FPS converts maneuver durations from seconds to frames.
	FPS int
}

// LandParameters tunes PlanShowLanding.
type LandParameters struct {
	// StartFrame is the first frame of the landing maneuver.
	StartFrame int
	// Velocity is the average vertical velocity in m/s.
	Velocity float64
	// Altitude is the altitude to land to, in meters.
	Altitude float64
	// SpindownTime is the number of seconds motors take to spin down after
	// touchdown.
	SpindownTime float64
	// MinDistance is the proximity threshold below which landings must be
	// staggered in time.
	MinDistance float64
	// FPS converts maneuver durations from seconds to frames.
	FPS int
}

// CreateHelperFormation builds the target point set of a takeoff or landing
// layer above the given source points. When the closest pair of the source
// set is nearer than minDistance, the planning service decomposes the set
// into groups and each group gets its own altitude layer; otherwise
// everything goes into a single layer at the base altitude.
func (s *Scheduler) CreateHelperFormation(
	ctx context.Context,
	source core.PointSet,
	baseAltitude, layerHeight, minDistance float64,
) (core.PointSet, []int, error) {
	var groups []int
	if _, _, dist := geo.ClosestPair(source); dist < minDistance {
		var err error
		groups, err = s.planner.DecomposePoints(ctx, source, minDistance, api.DecompositionBalanced)
		if err != nil {
			return nil, nil, err
		}
	} else {
		groups = make([]int, len(source))
	}

	numGroups := 0
	for _, g := range groups {
		if g+1 > numGroups {
			numGroups = g + 1
		}
	}

	// Group 0 takes the highest layer so earlier groups fly over later ones.
	target := make(core.PointSet, len(source))
	for i, p := range source {
		target[i] = core.Point3D{
			X: p.X,
			Y: p.Y,
			Z: baseAltitude + float64(numGroups-groups[i]-1)*layerHeight,
		}
	}
	return target, groups, nil
}

// PlanTakeoff appends a takeoff maneuver for the whole fleet to the
// storyboard and recalculates the transitions it affects. It returns the new
// takeoff entry.
func (s *Scheduler) PlanTakeoff(ctx context.Context, sb *storyboard.Storyboard, params TakeoffParameters) (*storyboard.Entry, error) {
	if err := validateTakeoffFrame(sb, params.StartFrame); err != nil {
		return nil, err
	}

	source := s.PositionsAtFrame(sb, params.StartFrame)
	target, _, err := s.CreateHelperFormation(ctx, source, params.Altitude, params.LayerHeight, params.MinDistance)
	if err != nil {
		return nil, err
	}

	diffs := make([]float64, len(source))
	for i := range source {
		diffs[i] = target[i].Z - source[i].Z
		if diffs[i] < 0 {
			return nil, fmt.Errorf(
				"at least one drone would have to take off downwards by %gm", -diffs[i],
			)
		}
	}

	// Longest climb sets the duration of the whole maneuver; everyone else
	// gets a departure delay so all drones arrive at the same time.
	durations := make([]int, len(diffs))
	takeoffDuration := 0
	for i, diff := range diffs {
		durations[i] = int(math.Ceil(diff / params.Velocity * float64(params.FPS)))
		if durations[i] > takeoffDuration {
			takeoffDuration = durations[i]
		}
	}
	delays := make([]int, len(durations))
	for i, d := range durations {
		delays[i] = takeoffDuration - d
	}

	endOfTakeoff := params.StartFrame + takeoffDuration
	if second := sb.SecondEntry(); second != nil && second.FrameStart < endOfTakeoff {
		return nil, fmt.Errorf(
			"takeoff maneuver needs at least %d frames; there is not enough time "+
				"before the second entry of the storyboard (frame %d)",
			takeoffDuration, second.FrameStart,
		)
	}

	// The first entry is the takeoff grid on the ground. It is created when
	// missing, otherwise its formation is snapped to the current positions.
	if first := sb.FirstEntry(); first == nil {
		sb.AddEntry(&storyboard.Entry{
			Name:           "Takeoff grid",
			Formation:      &storyboard.Formation{Name: "Takeoff grid", Markers: source.Clone()},
			FrameStart:     params.StartFrame,
			Duration:       1,
			Purpose:        storyboard.PurposeTakeoff,
			TransitionType: storyboard.TransitionManual,
			Schedule:       storyboard.ScheduleSynchronized,
		})
	} else {
		if first.Formation == nil {
			return nil, fmt.Errorf("first storyboard entry must have an associated formation")
		}
		first.Formation.Markers = source.Clone()
	}

	entry := &storyboard.Entry{
		Name:           "Takeoff",
		Formation:      &storyboard.Formation{Name: "Takeoff", Markers: target},
		FrameStart:     endOfTakeoff,
		Duration:       1,
		Purpose:        storyboard.PurposeTakeoff,
		TransitionType: storyboard.TransitionManual,
		Schedule:       storyboard.ScheduleSynchronized,
	}
	for index, delay := range delays {
		if delay > 0 {
			entry.ScheduleOverridesEnabled = true
			entry.AddScheduleOverride(storyboard.ScheduleOverride{
				Enabled:  true,
				Index:    index,
				PreDelay: delay,
			})
		}
	}
	sb.AddEntry(entry)
	sb.SetActiveEntry(entry.ID())

	// The maneuver disturbs the transitions into the grid, into the takeoff
	// layer, and into whatever comes right after.
	entries, err := sb.Validate(len(s.home))
	if err != nil {
		return nil, err
	}
	var tasks []RecalculationTask
	for i := 0; i < len(entries) && i < 3; i++ {
		tasks = append(tasks, taskForIndex(entries, i))
	}
	if err := s.run(ctx, sb, entries, tasks); err != nil {
		return nil, err
	}
	return entry, nil
}

// PlanShowLanding appends a landing maneuver for the whole fleet to the
// storyboard and recalculates the transition into it. It returns the new
// landing entry.
func (s *Scheduler) PlanShowLanding(ctx context.Context, sb *storyboard.Storyboard, params LandParameters) (*storyboard.Entry, error) {
	if sb.LastEntry() != nil && params.StartFrame < sb.FrameEnd() {
		return nil, fmt.Errorf(
			"landing maneuver must not start before the last entry of the storyboard (frame %d)",
			sb.FrameEnd(),
		)
	}

	source := s.PositionsAtFrame(sb, params.StartFrame)
	target := make(core.PointSet, len(source))
	diffs := make([]float64, len(source))
	for i, p := range source {
		target[i] = core.Point3D{X: p.X, Y: p.Y, Z: params.Altitude}
		diffs[i] = p.Z - params.Altitude
		if diffs[i] < 0 {
			return nil, fmt.Errorf(
				"at least one drone would have to land upwards by %gm", -diffs[i],
			)
		}
	}

	// Landing slots closer than the safety distance cannot be used at the
	// same time, so the planning service staggers them.
	var delaySecs, durationSecs []float64
	if _, _, dist := geo.ClosestPair(target); dist < params.MinDistance {
		plan, err := s.planner.PlanLanding(ctx, source, api.LandingParameters{
			MinDistance:    params.MinDistance,
			Velocity:       params.Velocity,
			TargetAltitude: params.Altitude,
			SpindownTime:   params.SpindownTime,
		})
		if err != nil {
			return nil, err
		}
		delaySecs, durationSecs = plan.StartTimes, plan.Durations
	} else {
		delaySecs = make([]float64, len(source))
		durationSecs = make([]float64, len(source))
		for i, diff := range diffs {
			durationSecs[i] = diff / params.Velocity
		}
	}

	fps := float64(params.FPS)
	delays := make([]int, len(delaySecs))
	durations := make([]int, len(durationSecs))
	maxDuration := 0
	for i := range delays {
		delays[i] = int(math.Ceil(delaySecs[i] * fps))
		durations[i] = int(math.Floor(durationSecs[i] * fps))
		if total := delays[i] + durations[i]; total > maxDuration {
			maxDuration = total
		}
	}
	postDelays := make([]int, len(delays))
	for i := range delays {
		postDelays[i] = maxDuration - delays[i] - durations[i]
	}

	lastEntry := sb.LastEntry()
	if lastEntry != nil {
		lastEntry.ExtendUntil(params.StartFrame)
	}

	entry := &storyboard.Entry{
		Name:           "Landing",
		Formation:      &storyboard.Formation{Name: "Landing", Markers: target},
		FrameStart:     params.StartFrame + maxDuration,
		Duration:       1,
		Purpose:        storyboard.PurposeLanding,
		TransitionType: storyboard.TransitionManual,
		Schedule:       storyboard.ScheduleSynchronized,
	}

	// Schedule overrides are keyed by departure rank, which is the drone's
	// marker index in the formation it departs from.
	for droneIndex := range delays {
		if delays[droneIndex] == 0 && postDelays[droneIndex] == 0 {
			continue
		}
		overrideIndex := droneIndex
		if lastEntry != nil {
			mapping := lastEntry.Mapping()
			if droneIndex >= len(mapping) || mapping[droneIndex] == core.Unassigned {
				continue
			}
			overrideIndex = mapping[droneIndex]
		}
		entry.ScheduleOverridesEnabled = true
		entry.AddScheduleOverride(storyboard.ScheduleOverride{
			Enabled:   true,
			Index:     overrideIndex,
			PreDelay:  delays[droneIndex],
			PostDelay: postDelays[droneIndex],
		})
	}
	sb.AddEntry(entry)
	sb.SetActiveEntry(entry.ID())

	entries, err := sb.Validate(len(s.home))
	if err != nil {
		return nil, err
	}
	tasks := []RecalculationTask{taskForIndex(entries, len(entries)-1)}
	if err := s.run(ctx, sb, entries, tasks); err != nil {
		return nil, err
	}
	return entry, nil
}

func validateTakeoffFrame(sb *storyboard.Storyboard, startFrame int) error {
	first, second := sb.FirstEntry(), sb.SecondEntry()
	if first != nil && startFrame < first.FrameEnd() {
		return fmt.Errorf(
			"takeoff maneuver must start after the first (takeoff grid) entry "+
				"of the storyboard (frame %d)", first.FrameEnd(),
		)
	}
	if second != nil && startFrame >= second.FrameStart {
		return fmt.Errorf(
			"takeoff maneuver must start before the second entry of the storyboard (frame %d)",
			second.FrameStart,
		)
	}
	return nil
}
