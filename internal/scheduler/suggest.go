package scheduler

import (
	"context"
	"fmt"
	"math"

	"github.com/swarmstage/choreo/internal/api"
	"github.com/swarmstage/choreo/internal/storyboard"
	"github.com/swarmstage/choreo/pkg/core"
)

// MotionLimits caps drone motion when asking the planning service for timing.
type MotionLimits struct {
	// MaxVelocityXY and MaxVelocityZ are in m/s.
	MaxVelocityXY float64
	MaxVelocityZ  float64
	// MaxAcceleration is in m/s^2; zero leaves it to the service default.
	MaxAcceleration float64
}

// SuggestTransitionDuration asks the planning service how many frames the
// transition into the given sorted entry index needs under the motion limits.
// The suggestion covers the slowest drone; staggering headroom is not
// included.
func (s *Scheduler) SuggestTransitionDuration(
	ctx context.Context,
	sb *storyboard.Storyboard,
	entryIndex int,
	limits MotionLimits,
	fps int,
) (int, error) {
	entries := sb.Entries()
	if entryIndex < 0 || entryIndex >= len(entries) {
		return 0, fmt.Errorf("entry index %d out of range", entryIndex)
	}
	entry := entries[entryIndex]
	if entry.Formation == nil {
		return 0, fmt.Errorf("entry %q is a free segment, nothing to transition into", entry.Name)
	}

	source := s.home.Clone()
	if entryIndex > 0 {
		source = s.PositionsAtFrame(sb, entries[entryIndex-1].FrameEnd())
	}

	plan, err := s.planner.PlanTransition(ctx, source, entry.Formation.Markers, api.TransitionParameters{
		MaxVelocityXY:   limits.MaxVelocityXY,
		MaxVelocityZ:    limits.MaxVelocityZ,
		MaxAcceleration: limits.MaxAcceleration,
	})
	if err != nil {
		return 0, err
	}
	if plan.IsEmpty() {
		return 0, nil
	}
	return int(math.Ceil(plan.TotalDuration() * float64(fps))), nil
}

// PlanReturnToHome asks the planning service for a collision-free return
// maneuver from the drone positions at the given frame back to the home
// positions.
func (s *Scheduler) PlanReturnToHome(
	ctx context.Context,
	sb *storyboard.Storyboard,
	frame int,
	limits MotionLimits,
	minDistance float64,
) (*core.SmartRTHPlan, error) {
	source := s.PositionsAtFrame(sb, frame)
	return s.planner.PlanSmartRTH(ctx, source, s.home, api.SmartRTHParameters{
		MaxVelocityXY:   limits.MaxVelocityXY,
		MaxVelocityZ:    limits.MaxVelocityZ,
		MaxAcceleration: limits.MaxAcceleration,
		MinDistance:     minDistance,
	})
}
