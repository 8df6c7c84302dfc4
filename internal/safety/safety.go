// Package safety runs proximity checks over drone positions and caches the
// results per frame, so scrubbing back and forth over a show does not redo
// the pair queries.
package safety

import (
	"sync"

	"github.com/swarmstage/choreo/internal/geo"
	"github.com/swarmstage/choreo/pkg/core"
)

// CheckResult is the outcome of one proximity check.
type CheckResult struct {
	Frame int
	// MinDistance is the distance of the closest pair, +Inf for fewer than
	// two drones.
	MinDistance float64
	// ClosestPair holds the two offending positions when a closest pair
	// exists.
	ClosestPair *geo.PointPair
	// PairsBelowThreshold lists every pair closer than the configured
	// threshold.
	PairsBelowThreshold []geo.PointPair
}

// IsSafe reports whether no pair violates the threshold.
func (r *CheckResult) IsSafe() bool {
	return len(r.PairsBelowThreshold) == 0
}

// Checker caches proximity check results per frame. It is safe for
// concurrent use; results stay valid until Invalidate is called after any
// change to the show.
type Checker struct {
	mu        sync.Mutex
	threshold float64
	results   map[int]*CheckResult
}

// NewChecker creates a checker with the given proximity threshold in meters.
func NewChecker(threshold float64) *Checker {
	return &Checker{
		threshold: threshold,
		results:   make(map[int]*CheckResult),
	}
}

// Threshold returns the proximity threshold.
func (c *Checker) Threshold() float64 {
	return c.threshold
}

// Check runs the proximity queries for the given positions at the given
// frame, or returns the cached result if the frame was checked before.
func (c *Checker) Check(frame int, positions core.PointSet) *CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result, ok := c.results[frame]; ok {
		return result
	}

	result := &CheckResult{Frame: frame}
	p, q, dist := geo.ClosestPair(positions)
	result.MinDistance = dist
	if p != nil && q != nil {
		result.ClosestPair = &geo.PointPair{P: *p, Q: *q}
	}
	if dist < c.threshold {
		result.PairsBelowThreshold = geo.AllPairsWithin(positions, c.threshold)
	}

	c.results[frame] = result
	return result
}

// Last returns the cached result for a frame without computing anything.
func (c *Checker) Last(frame int) (*CheckResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.results[frame]
	return result, ok
}

// Invalidate drops every cached result. Call it whenever positions may have
// changed.
func (c *Checker) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make(map[int]*CheckResult)
}
