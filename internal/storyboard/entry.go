// Package storyboard holds the show timeline: an ordered collection of
// formation entries with their transition policies, plus the validation and
// frame queries the transition scheduler consumes.
package storyboard

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/swarmstage/choreo/pkg/core"
)

// Purpose classifies an entry within the show. A valid show starts with zero
// or more takeoff entries, followed by any number of show entries, and ends
// with zero or more landing entries.
type Purpose int

const (
	PurposeTakeoff Purpose = iota + 1
	PurposeShow
	PurposeLanding
)

func (p Purpose) String() string {
	switch p {
	case PurposeTakeoff:
		return "Takeoff"
	case PurposeShow:
		return "Show"
	case PurposeLanding:
		return "Landing"
	default:
		return fmt.Sprintf("Purpose(%d)", int(p))
	}
}

// ParsePurpose converts a show-file string into a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(s) {
	case "takeoff":
		return PurposeTakeoff, nil
	case "show", "":
		return PurposeShow, nil
	case "landing":
		return PurposeLanding, nil
	default:
		return 0, fmt.Errorf("unknown entry purpose: %q", s)
	}
}

// TransitionType selects how drones are mapped to the markers of an entry.
type TransitionType int

const (
	// TransitionManual maps the nth drone to the nth marker, truncated to the
	// shorter side.
	TransitionManual TransitionType = iota + 1
	// TransitionAuto delegates to the planning service for an optimal
	// matching.
	TransitionAuto
)

// ParseTransitionType converts a show-file string into a TransitionType.
func ParseTransitionType(s string) (TransitionType, error) {
	switch strings.ToLower(s) {
	case "manual":
		return TransitionManual, nil
	case "auto", "":
		return TransitionAuto, nil
	default:
		return 0, fmt.Errorf("unknown transition type: %q", s)
	}
}

// Schedule selects the departure/arrival timing of a transition.
type Schedule int

const (
	// ScheduleSynchronized moves all drones in the same window. Collision-free
	// trajectories are guaranteed only for synchronized transitions.
	ScheduleSynchronized Schedule = iota + 1
	// ScheduleStaggered offsets each drone by its departure and arrival rank.
	ScheduleStaggered
)

// ParseSchedule converts a show-file string into a Schedule.
func ParseSchedule(s string) (Schedule, error) {
	switch strings.ToLower(s) {
	case "synchronized", "":
		return ScheduleSynchronized, nil
	case "staggered":
		return ScheduleStaggered, nil
	default:
		return 0, fmt.Errorf("unknown transition schedule: %q", s)
	}
}

// ScheduleOverride replaces the formulaic staggered delays for one departure
// rank with an explicit pair. Overrides win over the formula, never add to it.
type ScheduleOverride struct {
	// Enabled gates this override individually.
	Enabled bool
	// Index is the 0-based departure rank the override applies to.
	Index int
	// PreDelay is the number of frames between the start of the transition and
	// the departure of the drone at this rank.
	PreDelay int
	// PostDelay is the number of frames between the arrival of the drone at
	// this rank and the end of the transition.
	PostDelay int
}

// Label returns a short human-readable summary of the override.
func (o ScheduleOverride) Label() string {
	parts := []string{fmt.Sprintf("@%d", o.Index)}
	if o.PreDelay != 0 {
		parts = append(parts, fmt.Sprintf("dep %d", o.PreDelay))
	}
	if o.PostDelay != 0 {
		parts = append(parts, fmt.Sprintf("arr %d", o.PostDelay))
	}
	return strings.Join(parts, " | ")
}

// Formation is a named target point set that drones should occupy during an
// entry. Marker order is significant: the mapping refers to marker indices.
type Formation struct {
	Name    string
	Markers core.PointSet
}

// Entry is one formation interval on the show timeline.
type Entry struct {
	id string

	Name string
	// Formation is the target point set of the entry; nil marks a free
	// segment that is not affected by formation constraints.
	Formation *Formation

	FrameStart int
	// Duration is at least 1 frame.
	Duration int

	Purpose        Purpose
	TransitionType TransitionType
	Schedule       Schedule

	// PreDelayPerDrone and PostDelayPerDrone are the per-rank frame deltas
	// applied in staggered mode. Never negative.
	PreDelayPerDrone  int
	PostDelayPerDrone int

	ScheduleOverrides        []ScheduleOverride
	ScheduleOverridesEnabled bool

	// IsLocked excludes the entry from recalculation entirely.
	IsLocked bool

	mapping core.Mapping
}

// ID returns the stable identifier of the entry, assigning one on first use.
// The ID never changes for the lifetime of the entry, so external references
// survive timeline reordering.
func (e *Entry) ID() string {
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e.id
}

// FrameEnd returns the last frame of the entry.
func (e *Entry) FrameEnd() int {
	return e.FrameStart + e.Duration - 1
}

// SetFrameEnd adjusts the duration so the entry ends at the given frame. A
// frame at or before the start collapses the entry to a single frame there.
func (e *Entry) SetFrameEnd(frame int) {
	if frame <= e.FrameStart {
		e.FrameStart = frame
		e.Duration = 1
	} else {
		e.Duration = frame - e.FrameStart + 1
	}
}

// ContainsFrame reports whether the frame falls within the entry.
func (e *Entry) ContainsFrame(frame int) bool {
	offset := frame - e.FrameStart
	return offset >= 0 && offset < e.Duration
}

// ExtendUntil grows the entry so it lasts at least until the given frame.
func (e *Entry) ExtendUntil(frame int) {
	if diff := frame - e.FrameEnd(); diff > 0 {
		e.Duration += diff
	}
}

// IsStaggered reports whether departures and arrivals are rank-offset.
func (e *Entry) IsStaggered() bool {
	return e.Schedule == ScheduleStaggered
}

// MarkerCount returns the number of markers of the entry's formation, zero
// for free segments.
func (e *Entry) MarkerCount() int {
	if e.Formation == nil {
		return 0
	}
	return len(e.Formation.Markers)
}

// EnabledOverrides returns the active overrides keyed by departure rank.
// The result is empty unless overrides are enabled as a whole.
func (e *Entry) EnabledOverrides() map[int]ScheduleOverride {
	result := make(map[int]ScheduleOverride)
	if !e.ScheduleOverridesEnabled {
		return result
	}
	for _, o := range e.ScheduleOverrides {
		if o.Enabled {
			result[o.Index] = o
		}
	}
	return result
}

// AddScheduleOverride appends an override entry and returns its index within
// the override list.
func (e *Entry) AddScheduleOverride(o ScheduleOverride) int {
	e.ScheduleOverrides = append(e.ScheduleOverrides, o)
	return len(e.ScheduleOverrides) - 1
}

// Mapping returns the last computed drone-to-marker mapping, or nil when the
// entry has never been scheduled.
func (e *Entry) Mapping() core.Mapping {
	return e.mapping
}

// SetMapping records the computed mapping on the entry. Later queries can
// retrieve it without recomputation until the next recalculation replaces it.
func (e *Entry) SetMapping(m core.Mapping) {
	e.mapping = m
}
