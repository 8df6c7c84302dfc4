// Package showfile loads a show document from JSON. The document carries the
// show metadata, the drone home positions, the named formations and the
// storyboard entries; it is the single input surface of the planner.
package showfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/swarmstage/choreo/internal/geo"
	"github.com/swarmstage/choreo/internal/storyboard"
	"github.com/swarmstage/choreo/pkg/core"
)

// documentVersion is the only show document version this build reads.
const documentVersion = 1

// Document is a fully parsed and validated show document.
type Document struct {
	Name string
	FPS  int
	// Origin georeferences an outdoor show; nil for indoor shows.
	Origin *geo.ShowOrigin
	// Home holds the takeoff position of each drone; its length is the drone
	// count of the show.
	Home       core.PointSet
	Formations map[string]*storyboard.Formation
	Storyboard *storyboard.Storyboard
}

// NumDrones returns the number of drones in the show.
func (d *Document) NumDrones() int {
	return len(d.Home)
}

type rawOverride struct {
	Enabled   bool `json:"enabled"`
	Index     int  `json:"index"`
	PreDelay  int  `json:"preDelay"`
	PostDelay int  `json:"postDelay"`
}

type rawEntry struct {
	Name              string        `json:"name"`
	Formation         string        `json:"formation"`
	FrameStart        int           `json:"frameStart"`
	Duration          int           `json:"duration"`
	Purpose           string        `json:"purpose"`
	TransitionType    string        `json:"transitionType"`
	Schedule          string        `json:"schedule"`
	PreDelayPerDrone  int           `json:"preDelayPerDrone"`
	PostDelayPerDrone int           `json:"postDelayPerDrone"`
	OverridesEnabled  bool          `json:"scheduleOverridesEnabled"`
	Overrides         []rawOverride `json:"scheduleOverrides"`
	IsLocked          bool          `json:"isLocked"`
}

type rawDocument struct {
	Version    int                     `json:"version"`
	Name       string                  `json:"name"`
	FPS        int                     `json:"fps"`
	Origin     string                  `json:"origin"`
	Home       [][3]float64            `json:"home"`
	Formations map[string][][3]float64 `json:"formations"`
	Storyboard struct {
		SceneFrameStart int        `json:"sceneFrameStart"`
		Entries         []rawEntry `json:"entries"`
	} `json:"storyboard"`
}

// Load reads and parses the show document at the given path.
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening show file: %w", err)
	}
	defer file.Close()

	doc, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing show file %s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a show document from the given reader.
func Parse(r io.Reader) (*Document, error) {
	var raw rawDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	if raw.Version != documentVersion {
		return nil, fmt.Errorf("unsupported show document version %d, expected %d", raw.Version, documentVersion)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("show document has no name")
	}
	if len(raw.Home) == 0 {
		return nil, fmt.Errorf("show document has no drone home positions")
	}
	if raw.FPS < 0 {
		return nil, fmt.Errorf("invalid frame rate %d", raw.FPS)
	}

	doc := &Document{
		Name:       raw.Name,
		FPS:        raw.FPS,
		Home:       decodePoints(raw.Home),
		Formations: make(map[string]*storyboard.Formation, len(raw.Formations)),
	}
	if doc.FPS == 0 {
		doc.FPS = 25
	}

	if raw.Origin != "" {
		origin, err := geo.ParseOrigin(raw.Origin)
		if err != nil {
			return nil, fmt.Errorf("parsing show origin %q: %w", raw.Origin, err)
		}
		doc.Origin = &origin
	}

	for name, markers := range raw.Formations {
		if name == "" {
			return nil, fmt.Errorf("formation with empty name")
		}
		doc.Formations[name] = &storyboard.Formation{
			Name:    name,
			Markers: decodePoints(markers),
		}
	}

	sb := storyboard.New(raw.Storyboard.SceneFrameStart)
	for i, re := range raw.Storyboard.Entries {
		entry, err := parseEntry(re, doc.Formations)
		if err != nil {
			return nil, fmt.Errorf("storyboard entry %d (%q): %w", i, re.Name, err)
		}
		sb.AddEntry(entry)
	}
	doc.Storyboard = sb

	if _, err := sb.Validate(doc.NumDrones()); err != nil {
		return nil, err
	}

	return doc, nil
}

func parseEntry(re rawEntry, formations map[string]*storyboard.Formation) (*storyboard.Entry, error) {
	if re.Name == "" {
		return nil, fmt.Errorf("entry has no name")
	}
	if re.Duration < 1 {
		return nil, fmt.Errorf("duration must be at least 1 frame, got %d", re.Duration)
	}
	if re.PreDelayPerDrone < 0 || re.PostDelayPerDrone < 0 {
		return nil, fmt.Errorf("per-drone delays must not be negative")
	}

	purpose, err := storyboard.ParsePurpose(re.Purpose)
	if err != nil {
		return nil, err
	}
	transitionType, err := storyboard.ParseTransitionType(re.TransitionType)
	if err != nil {
		return nil, err
	}
	schedule, err := storyboard.ParseSchedule(re.Schedule)
	if err != nil {
		return nil, err
	}

	// An empty formation name marks a free segment.
	var formation *storyboard.Formation
	if re.Formation != "" {
		formation = formations[re.Formation]
		if formation == nil {
			return nil, fmt.Errorf("unknown formation %q", re.Formation)
		}
	}

	entry := &storyboard.Entry{
		Name:              re.Name,
		Formation:         formation,
		FrameStart:        re.FrameStart,
		Duration:          re.Duration,
		Purpose:           purpose,
		TransitionType:    transitionType,
		Schedule:          schedule,
		PreDelayPerDrone:  re.PreDelayPerDrone,
		PostDelayPerDrone: re.PostDelayPerDrone,
		IsLocked:          re.IsLocked,
	}
	entry.ScheduleOverridesEnabled = re.OverridesEnabled
	for _, ro := range re.Overrides {
		if ro.Index < 0 {
			return nil, fmt.Errorf("schedule override with negative index %d", ro.Index)
		}
		entry.AddScheduleOverride(storyboard.ScheduleOverride{
			Enabled:   ro.Enabled,
			Index:     ro.Index,
			PreDelay:  ro.PreDelay,
			PostDelay: ro.PostDelay,
		})
	}

	return entry, nil
}

func decodePoints(raw [][3]float64) core.PointSet {
	points := make(core.PointSet, len(raw))
	for i, p := range raw {
		points[i] = core.Point3D{X: p[0], Y: p[1], Z: p[2]}
	}
	return points
}
