package storyboard

import (
	"fmt"
	"math"
	"sort"

	"github.com/swarmstage/choreo/pkg/core"
)

// ValidationError reports the first violation found while validating the
// timeline. It identifies the offending entry and frame so the caller can
// edit the timeline; validation never mutates or auto-repairs anything.
type ValidationError struct {
	EntryID   string
	EntryName string
	Frame     int
	Message   string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Storyboard is the ordered collection of entries making up one show. Entries
// are kept sorted by (FrameStart, FrameEnd) after every mutation. The active
// entry is tracked by ID, not position, so reordering never invalidates it.
type Storyboard struct {
	// SceneFrameStart is the first frame of the whole scene, used as the
	// timeline start when there are no entries yet.
	SceneFrameStart int

	entries  []*Entry
	activeID string
}

// New creates an empty storyboard starting at the given scene frame.
func New(sceneFrameStart int) *Storyboard {
	return &Storyboard{SceneFrameStart: sceneFrameStart}
}

// Len returns the number of entries.
func (s *Storyboard) Len() int {
	return len(s.entries)
}

// Entries returns the entries in sorted order. The slice is a copy; the
// entries themselves are shared.
func (s *Storyboard) Entries() []*Entry {
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// AddEntry inserts an entry and re-sorts the timeline. The entry's stable ID
// is assigned here if it does not have one yet.
func (s *Storyboard) AddEntry(e *Entry) *Entry {
	if e.Duration < 1 {
		e.Duration = 1
	}
	_ = e.ID()
	s.entries = append(s.entries, e)
	s.sortEntries()
	return e
}

// RemoveEntry deletes the entry with the given ID. It returns false when no
// such entry exists.
func (s *Storyboard) RemoveEntry(id string) bool {
	for i, e := range s.entries {
		if e.ID() == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			if s.activeID == id {
				s.activeID = ""
			}
			return true
		}
	}
	return false
}

// Entry returns the entry with the given ID, or nil.
func (s *Storyboard) Entry(id string) *Entry {
	for _, e := range s.entries {
		if e.ID() == id {
			return e
		}
	}
	return nil
}

// SetActiveEntry marks the entry with the given ID as the one being edited.
func (s *Storyboard) SetActiveEntry(id string) {
	if s.Entry(id) != nil {
		s.activeID = id
	} else {
		s.activeID = ""
	}
}

// ActiveEntry returns the entry currently being edited, or nil.
func (s *Storyboard) ActiveEntry() *Entry {
	if s.activeID == "" {
		return nil
	}
	return s.Entry(s.activeID)
}

// ActiveIndex returns the sorted position of the active entry, or -1.
func (s *Storyboard) ActiveIndex() int {
	for i, e := range s.entries {
		if e.ID() == s.activeID && s.activeID != "" {
			return i
		}
	}
	return -1
}

// EntryBeforeActive returns the entry immediately preceding the active one.
func (s *Storyboard) EntryBeforeActive() *Entry {
	if i := s.ActiveIndex(); i > 0 {
		return s.entries[i-1]
	}
	return nil
}

// EntryAfterActive returns the entry immediately following the active one.
func (s *Storyboard) EntryAfterActive() *Entry {
	if i := s.ActiveIndex(); i >= 0 && i < len(s.entries)-1 {
		return s.entries[i+1]
	}
	return nil
}

// FirstEntry returns the first entry of the timeline, or nil.
func (s *Storyboard) FirstEntry() *Entry {
	if len(s.entries) > 0 {
		return s.entries[0]
	}
	return nil
}

// SecondEntry returns the second entry of the timeline, or nil.
func (s *Storyboard) SecondEntry() *Entry {
	if len(s.entries) > 1 {
		return s.entries[1]
	}
	return nil
}

// LastEntry returns the last entry of the timeline, or nil.
func (s *Storyboard) LastEntry() *Entry {
	if len(s.entries) > 0 {
		return s.entries[len(s.entries)-1]
	}
	return nil
}

// FrameStart returns the first frame of the timeline: the earliest entry
// start, or the scene start when the timeline is empty.
func (s *Storyboard) FrameStart() int {
	if len(s.entries) == 0 {
		return s.SceneFrameStart
	}
	start := s.entries[0].FrameStart
	for _, e := range s.entries[1:] {
		if e.FrameStart < start {
			start = e.FrameStart
		}
	}
	return start
}

// FrameEnd returns the last frame of the timeline.
func (s *Storyboard) FrameEnd() int {
	if len(s.entries) == 0 {
		return s.FrameStart()
	}
	end := s.entries[0].FrameEnd()
	for _, e := range s.entries[1:] {
		if e.FrameEnd() > end {
			end = e.FrameEnd()
		}
	}
	return end
}

// IndexOfEntryContainingFrame returns the sorted index of the entry that
// contains the frame, or -1.
func (s *Storyboard) IndexOfEntryContainingFrame(frame int) int {
	for i, e := range s.entries {
		if e.ContainsFrame(frame) {
			return i
		}
	}
	return -1
}

// IndexOfEntryAfterFrame returns the index of the nearest entry that starts
// strictly after the frame, or -1.
func (s *Storyboard) IndexOfEntryAfterFrame(frame int) int {
	best, closest := math.MaxInt, -1
	for i, e := range s.entries {
		if e.FrameStart > frame {
			if diff := e.FrameStart - frame; diff < best {
				best, closest = diff, i
			}
		}
	}
	return closest
}

// IndexOfEntryBeforeFrame returns the index of the nearest entry that ends at
// or before the frame, or -1.
func (s *Storyboard) IndexOfEntryBeforeFrame(frame int) int {
	best, closest := math.MaxInt, -1
	for i, e := range s.entries {
		if e.FrameEnd() <= frame {
			if diff := frame - e.FrameEnd(); diff < best {
				best, closest = diff, i
			}
		}
	}
	return closest
}

// MappingAtFrame returns the mapping in effect at the frame: the mapping of
// the entry containing it, falling back to the nearest earlier entry. Nil
// when no mapping applies.
func (s *Storyboard) MappingAtFrame(frame int) core.Mapping {
	if i := s.IndexOfEntryContainingFrame(frame); i >= 0 {
		return s.entries[i].Mapping()
	}
	if i := s.IndexOfEntryBeforeFrame(frame); i >= 0 {
		return s.entries[i].Mapping()
	}
	return nil
}

// FrameRangeAt returns the frame range of the formation or transition at the
// given frame: the containing entry's range, or the gap between the adjacent
// entries. The second result is false outside any formation or transition.
func (s *Storyboard) FrameRangeAt(frame int) (int, int, bool) {
	if i := s.IndexOfEntryContainingFrame(frame); i >= 0 {
		return s.entries[i].FrameStart, s.entries[i].FrameEnd(), true
	}
	if i := s.IndexOfEntryAfterFrame(frame); i > 0 {
		return s.entries[i-1].FrameEnd(), s.entries[i].FrameStart, true
	}
	return 0, 0, false
}

// TransitionDurationIntoActive returns the number of frames between the
// previous entry's end and the active entry's start.
func (s *Storyboard) TransitionDurationIntoActive() int {
	prev, current := s.EntryBeforeActive(), s.ActiveEntry()
	if prev != nil && current != nil {
		return current.FrameStart - prev.FrameEnd()
	}
	return 0
}

// TransitionDurationFromActive returns the number of frames between the
// active entry's end and the next entry's start.
func (s *Storyboard) TransitionDurationFromActive() int {
	current, next := s.ActiveEntry(), s.EntryAfterActive()
	if current != nil && next != nil {
		return next.FrameStart - current.FrameEnd()
	}
	return 0
}

// MoveEntryDown swaps the entry with its successor on the timeline,
// re-basing both start frames so the pad between them is preserved.
func (s *Storyboard) MoveEntryDown(id string) bool {
	for i, e := range s.entries {
		if e.ID() != id {
			continue
		}
		if i >= len(s.entries)-1 {
			return false
		}
		next := s.entries[i+1]
		pad := next.FrameStart - e.FrameEnd()
		e.FrameStart, next.FrameStart = e.FrameStart+next.Duration+pad, e.FrameStart
		s.sortEntries()
		return true
	}
	return false
}

// MoveEntryUp swaps the entry with its predecessor on the timeline,
// re-basing both start frames so the pad between them is preserved.
func (s *Storyboard) MoveEntryUp(id string) bool {
	for i, e := range s.entries {
		if e.ID() != id {
			continue
		}
		if i == 0 {
			return false
		}
		prev := s.entries[i-1]
		pad := e.FrameStart - prev.FrameEnd()
		e.FrameStart, prev.FrameStart = prev.FrameStart, prev.FrameStart+e.Duration+pad
		s.sortEntries()
		return true
	}
	return false
}

// Validate checks the timeline against the given drone count and returns the
// entries in sorted order. Checks run in sequence over the whole sorted
// timeline: adjacent overlaps first, then purpose monotonicity, then
// formation capacity; the first violation is reported.
func (s *Storyboard) Validate(numDrones int) ([]*Entry, error) {
	s.sortEntries()
	sorted := s.Entries()

	for i := 0; i < len(sorted)-1; i++ {
		entry, next := sorted[i], sorted[i+1]
		if entry.FrameEnd() >= next.FrameStart {
			return nil, &ValidationError{
				EntryID:   next.ID(),
				EntryName: next.Name,
				Frame:     next.FrameStart,
				Message: fmt.Sprintf(
					"storyboard entry %q at frame %d overlaps with previous entry %q",
					next.Name, next.FrameStart, entry.Name,
				),
			}
		}
	}

	for i := 0; i < len(sorted)-1; i++ {
		entry, next := sorted[i], sorted[i+1]
		if entry.Purpose > next.Purpose {
			return nil, &ValidationError{
				EntryID:   next.ID(),
				EntryName: next.Name,
				Frame:     next.FrameStart,
				Message: fmt.Sprintf(
					"storyboard entry %q has purpose %s, which cannot follow a %s entry",
					next.Name, next.Purpose, entry.Purpose,
				),
			}
		}
	}

	for _, entry := range sorted {
		numMarkers := entry.MarkerCount()
		if entry.Formation == nil || numMarkers <= numDrones {
			continue
		}
		var avail string
		switch {
		case numDrones > 1:
			avail = fmt.Sprintf("you only have %d drones", numDrones)
		case numDrones == 1:
			avail = "you only have one drone"
		default:
			avail = "you have no drones"
		}
		return nil, &ValidationError{
			EntryID:   entry.ID(),
			EntryName: entry.Name,
			Frame:     entry.FrameStart,
			Message: fmt.Sprintf(
				"storyboard entry %q contains a formation with %d markers but %s",
				entry.Name, numMarkers, avail,
			),
		}
	}

	return sorted, nil
}

func (s *Storyboard) sortEntries() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].FrameStart != s.entries[j].FrameStart {
			return s.entries[i].FrameStart < s.entries[j].FrameStart
		}
		return s.entries[i].FrameEnd() < s.entries[j].FrameEnd()
	})
}
