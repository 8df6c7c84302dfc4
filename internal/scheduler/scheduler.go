// Package scheduler recomputes drone-to-marker mappings and influence curves
// for storyboard entries. Each recalculation run walks the affected entries
// in causal order: the mapping of one entry determines the start positions,
// and therefore the departure ranks, of the next.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/swarmstage/choreo/internal/api"
	"github.com/swarmstage/choreo/internal/curve"
	"github.com/swarmstage/choreo/internal/storyboard"
	"github.com/swarmstage/choreo/pkg/core"
)

// Matcher computes an optimal assignment of source points to target points.
// The result is drone-indexed; unmatched drones carry core.Unassigned.
type Matcher interface {
	MatchPoints(ctx context.Context, source, target core.PointSet, radius float64) (core.Mapping, *float64, error)
}

// PlanningService is the full remote planning surface the scheduler uses.
// The api.Client implements it; tests substitute fakes.
type PlanningService interface {
	Matcher
	DecomposePoints(ctx context.Context, points core.PointSet, minDistance float64, method api.DecompositionMethod) ([]int, error)
	PlanLanding(ctx context.Context, points core.PointSet, params api.LandingParameters) (*core.LandingPlan, error)
	PlanTransition(ctx context.Context, source, target core.PointSet, params api.TransitionParameters) (*core.TransitionPlan, error)
	PlanSmartRTH(ctx context.Context, source, target core.PointSet, params api.SmartRTHParameters) (*core.SmartRTHPlan, error)
}

// CurveStore persists the scheduler's outputs: the per-entry mapping and the
// per-drone influence curves. Saving nil keyframes clears the curve of a
// drone that no longer participates in the entry.
type CurveStore interface {
	SaveMapping(entryID string, mapping core.Mapping) error
	SaveInfluenceCurve(entryID string, droneIndex int, keyframes []core.Keyframe) error
}

// CausalityError means a staggered or overridden delay left a drone with no
// time between its departure and its required arrival. It aborts the current
// run; entries processed earlier keep their results.
type CausalityError struct {
	EntryName string
	// DroneIndex is 1-based, matching the numbering shown to operators.
	DroneIndex int
}

func (e *CausalityError) Error() string {
	return fmt.Sprintf(
		"not enough time to plan staggered transition to formation %q at drone index %d (1-based); "+
			"try decreasing departure or arrival delay or allow more time for the transition",
		e.EntryName, e.DroneIndex,
	)
}

// ConfigurationError means the first formation and the drone fleet disagree
// in size. Raised before any mapping is written.
type ConfigurationError struct {
	NumDrones  int
	NumMarkers int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf(
		"first formation has %d markers but the show contains %d drones; "+
			"check the drone home positions and the first formation for consistency",
		e.NumMarkers, e.NumDrones,
	)
}

// Scope selects which transitions a recalculation run covers.
type Scope int

const (
	// ScopeAll recalculates every transition of the storyboard.
	ScopeAll Scope = iota + 1
	// ScopeCurrentFrame recalculates the transition leading into the nearest
	// entry after the given frame.
	ScopeCurrentFrame
	// ScopeToSelected recalculates the transition into the active entry.
	ScopeToSelected
	// ScopeFromSelected recalculates the transition out of the active entry.
	ScopeFromSelected
	// ScopeFromSelectedToEnd recalculates everything from the active entry on.
	ScopeFromSelectedToEnd
)

// ParseScope converts a command-line scope name into a Scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "all", "":
		return ScopeAll, nil
	case "current-frame":
		return ScopeCurrentFrame, nil
	case "to-selected":
		return ScopeToSelected, nil
	case "from-selected":
		return ScopeFromSelected, nil
	case "from-selected-to-end":
		return ScopeFromSelectedToEnd, nil
	default:
		return 0, fmt.Errorf("unknown recalculation scope: %q", s)
	}
}

// RecalculationTask is one transition to recompute: the target entry plus
// its causal neighborhood on the timeline.
type RecalculationTask struct {
	Entry *storyboard.Entry
	// Index is the sorted position of the entry in the storyboard.
	Index int
	// Previous is the preceding entry, nil when Entry is the first one.
	Previous *storyboard.Entry
	// StartOfNext is the start frame of the following entry, nil when Entry
	// is the last one. It bounds the influence plateau.
	StartOfNext *int
}

// Scheduler owns one fleet's transition planning. Home positions double as
// the fleet size and as the position of every drone before the first entry.
type Scheduler struct {
	planner PlanningService
	curves  CurveStore
	home    core.PointSet
	logger  *slog.Logger
}

// New creates a scheduler for a fleet with the given home positions.
func New(planner PlanningService, curves CurveStore, home core.PointSet, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		planner: planner,
		curves:  curves,
		home:    home.Clone(),
		logger:  logger,
	}
}

// NumDrones returns the fleet size.
func (s *Scheduler) NumDrones() int {
	return len(s.home)
}

// Recalculate validates the storyboard and recomputes every transition the
// scope covers. Mappings and curves of entries processed before a failure
// are kept; nothing is rolled back. Rerunning with unchanged inputs yields
// identical outputs.
func (s *Scheduler) Recalculate(ctx context.Context, sb *storyboard.Storyboard, scope Scope, currentFrame int) error {
	if len(s.home) == 0 {
		return fmt.Errorf("cannot recalculate transitions: the fleet has no drones")
	}

	entries, err := sb.Validate(len(s.home))
	if err != nil {
		return err
	}

	tasks := buildTasks(sb, entries, scope, currentFrame)
	selected := tasks[:0]
	for _, task := range tasks {
		if !task.Entry.IsLocked {
			selected = append(selected, task)
		}
	}
	if len(selected) == 0 {
		s.logger.Info("no transitions match the selected scope, nothing to do")
		return nil
	}

	return s.run(ctx, sb, entries, selected)
}

// run executes a prepared set of recalculation tasks against the sorted
// entries of the storyboard.
func (s *Scheduler) run(ctx context.Context, sb *storyboard.Storyboard, entries []*storyboard.Entry, tasks []RecalculationTask) error {
	byIndex := make(map[int]RecalculationTask, len(tasks))
	for _, task := range tasks {
		byIndex[task.Index] = task
	}

	startOfScene := sb.SceneFrameStart
	if fs := sb.FrameStart(); fs < startOfScene {
		startOfScene = fs
	}

	s.logger.Debug("recalculating transitions",
		"tasks", len(tasks),
		"entries", len(entries),
		"sceneStart", startOfScene,
	)

	// Drone positions are tracked through the timeline: each entry's mapping
	// moves every assigned drone onto its marker. Entries outside the scope
	// advance positions with their previously stored mapping.
	positions := s.home.Clone()
	var previousMapping core.Mapping

	for i, entry := range entries {
		task, ok := byIndex[i]
		if !ok {
			advancePositions(positions, entry, entry.Mapping())
			continue
		}

		mapping, err := s.processEntry(ctx, task, positions, previousMapping, startOfScene)
		if err != nil {
			return err
		}
		previousMapping = mapping
		advancePositions(positions, entry, mapping)
	}

	return nil
}

// processEntry recomputes the transition into one entry and returns the new
// drone-indexed mapping, or nil for free segments.
func (s *Scheduler) processEntry(
	ctx context.Context,
	task RecalculationTask,
	positions core.PointSet,
	previousMapping core.Mapping,
	startOfScene int,
) (core.Mapping, error) {
	entry := task.Entry
	if entry.Formation == nil {
		// Free segment, nothing to map.
		return nil, nil
	}

	numDrones := len(s.home)
	endOfPrevious := startOfScene
	if task.Previous != nil {
		endOfPrevious = task.Previous.FrameEnd()
	}

	// The transition starts where the previous entry left the drones. For
	// the first entry the formation itself provides the start points, so its
	// size must match the fleet exactly.
	var startPoints core.PointSet
	if task.Previous != nil {
		startPoints = positions
	} else {
		startPoints = entry.Formation.Markers
		if len(startPoints) != numDrones {
			return nil, &ConfigurationError{NumDrones: numDrones, NumMarkers: len(startPoints)}
		}
	}

	mapping, err := s.mappingInto(ctx, entry, startPoints)
	if err != nil {
		return nil, err
	}

	entry.SetMapping(mapping)
	if err := s.curves.SaveMapping(entry.ID(), mapping); err != nil {
		return nil, fmt.Errorf("failed to store mapping for entry %q: %w", entry.Name, err)
	}

	numTransitioning := mapping.NumAssigned()
	overrides := entry.EnabledOverrides()

	s.logger.Debug("computed mapping for entry",
		"entry", entry.Name,
		"transitioning", numTransitioning,
		"staggered", entry.IsStaggered(),
		"overrides", len(overrides),
	)

	type pendingCurve struct {
		droneIndex int
		descriptor curve.Descriptor
	}
	var todo []pendingCurve

	for droneIndex := 0; droneIndex < numDrones; droneIndex++ {
		targetIndex := mapping[droneIndex]
		if targetIndex == core.Unassigned {
			// The drone sits this entry out; any stale curve goes away.
			if err := s.curves.SaveInfluenceCurve(entry.ID(), droneIndex, nil); err != nil {
				return nil, fmt.Errorf("failed to clear influence curve for entry %q: %w", entry.Name, err)
			}
			continue
		}

		windupStart := endOfPrevious
		startFrame := entry.FrameStart
		departureDelay, arrivalDelay := 0, 0
		departureIndex, departureIndexKnown := 0, false

		if entry.IsStaggered() {
			departureIndex = departureIndexOf(droneIndex, task, previousMapping)
			departureIndexKnown = true
			arrivalIndex := targetIndex

			departureDelay = entry.PreDelayPerDrone * departureIndex
			arrivalDelay = -entry.PostDelayPerDrone * (numTransitioning - arrivalIndex - 1)
		}

		if len(overrides) > 0 {
			if !departureIndexKnown {
				departureIndex = departureIndexOf(droneIndex, task, previousMapping)
			}
			if o, ok := overrides[departureIndex]; ok {
				// Overrides replace the formula for this rank entirely.
				departureDelay = o.PreDelay
				arrivalDelay = -o.PostDelay
			}
		}

		windupStart += departureDelay
		startFrame += arrivalDelay

		if task.Previous == nil {
			// No drone may depart before the show begins.
			windupStart, startFrame = startOfScene, startOfScene
		} else if windupStart >= startFrame {
			return nil, &CausalityError{EntryName: entry.Name, DroneIndex: droneIndex + 1}
		}

		windup := windupStart
		todo = append(todo, pendingCurve{
			droneIndex: droneIndex,
			descriptor: curve.Descriptor{
				SceneStartFrame:  startOfScene,
				WindupStartFrame: &windup,
				StartFrame:       startFrame,
				EndFrame:         task.StartOfNext,
				Windup:           curve.WindupSmooth,
			},
		})
	}

	// Curves are written only after every window passed the causality check,
	// so a failed run never leaves the entry half-written.
	for _, p := range todo {
		if err := s.curves.SaveInfluenceCurve(entry.ID(), p.droneIndex, p.descriptor.Build()); err != nil {
			return nil, fmt.Errorf("failed to store influence curve for entry %q: %w", entry.Name, err)
		}
	}

	return mapping, nil
}

// mappingInto computes the drone-indexed mapping for the transition into the
// entry, starting from the given points.
func (s *Scheduler) mappingInto(ctx context.Context, entry *storyboard.Entry, startPoints core.PointSet) (core.Mapping, error) {
	markers := entry.Formation.Markers

	if entry.TransitionType == storyboard.TransitionManual {
		mapping := core.NewMapping(len(startPoints))
		length := len(startPoints)
		if len(markers) < length {
			length = len(markers)
		}
		for i := 0; i < length; i++ {
			mapping[i] = i
		}
		return mapping, nil
	}

	mapping, _, err := s.planner.MatchPoints(ctx, startPoints, markers, 0)
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

// departureIndexOf ranks a drone's departure within a staggered transition.
// The rank is the drone's marker index in the previous formation; drones that
// were unassigned there depart first. Before the first entry, or when the
// previous formation never got a mapping, the drone's own index serves as
// its rank.
func departureIndexOf(droneIndex int, task RecalculationTask, previousMapping core.Mapping) int {
	if len(previousMapping) > 0 {
		if droneIndex < len(previousMapping) && previousMapping[droneIndex] != core.Unassigned {
			return previousMapping[droneIndex]
		}
		return 0
	}

	if task.Previous == nil {
		return droneIndex
	}

	if m := task.Previous.Mapping(); len(m) > 0 {
		if droneIndex < len(m) && m[droneIndex] != core.Unassigned {
			return m[droneIndex]
		}
		return 0
	}

	if task.Index-1 == 0 {
		return droneIndex
	}
	return 0
}

// advancePositions moves every assigned drone onto its marker in the entry's
// formation. Free segments and unmapped entries leave positions untouched.
func advancePositions(positions core.PointSet, entry *storyboard.Entry, mapping core.Mapping) {
	if entry.Formation == nil || len(mapping) == 0 {
		return
	}
	markers := entry.Formation.Markers
	for droneIndex, targetIndex := range mapping {
		if droneIndex < len(positions) && targetIndex != core.Unassigned && targetIndex < len(markers) {
			positions[droneIndex] = markers[targetIndex]
		}
	}
}

// buildTasks selects the transitions covered by the scope, in timeline order.
func buildTasks(sb *storyboard.Storyboard, entries []*storyboard.Entry, scope Scope, currentFrame int) []RecalculationTask {
	activeIndex := sb.ActiveIndex()
	numEntries := len(entries)

	var include func(int) bool
	switch scope {
	case ScopeAll:
		include = func(int) bool { return true }
	case ScopeCurrentFrame:
		target := sb.IndexOfEntryAfterFrame(currentFrame)
		include = func(i int) bool { return i == target && target >= 0 }
	case ScopeToSelected:
		include = func(i int) bool { return activeIndex >= 0 && i == activeIndex }
	case ScopeFromSelected:
		include = func(i int) bool {
			return activeIndex >= 0 && activeIndex < numEntries-1 && i == activeIndex+1
		}
	case ScopeFromSelectedToEnd:
		include = func(i int) bool { return activeIndex >= 0 && i >= activeIndex }
	default:
		include = func(int) bool { return false }
	}

	var tasks []RecalculationTask
	for i := range entries {
		if include(i) {
			tasks = append(tasks, taskForIndex(entries, i))
		}
	}
	return tasks
}

// taskForIndex builds the recalculation task for one sorted entry index.
func taskForIndex(entries []*storyboard.Entry, index int) RecalculationTask {
	task := RecalculationTask{Entry: entries[index], Index: index}
	if index > 0 {
		task.Previous = entries[index-1]
	}
	if index+1 < len(entries) {
		next := entries[index+1].FrameStart
		task.StartOfNext = &next
	}
	return task
}

// PositionsAtFrame returns where every drone is at the given frame: the home
// positions advanced through every entry that starts at or before the frame,
// using the mappings stored on the entries.
func (s *Scheduler) PositionsAtFrame(sb *storyboard.Storyboard, frame int) core.PointSet {
	positions := s.home.Clone()
	for _, entry := range sb.Entries() {
		if entry.FrameStart > frame {
			break
		}
		advancePositions(positions, entry, entry.Mapping())
	}
	return positions
}
