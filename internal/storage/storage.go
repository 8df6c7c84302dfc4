// internal/storage/storage.go
package storage

import "github.com/swarmstage/choreo/pkg/core"

// Backend is the interface all storage implementations must satisfy. A
// Backend doubles as the curve store of the transition scheduler: mappings
// and influence curves are keyed by storyboard entry ID, so re-running a
// recalculation overwrites instead of accumulating.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Show management
	SaveShow(info *core.ShowInfo) error
	SaveFormation(name string, markers core.PointSet) error

	// Scheduler output
	SaveMapping(entryID string, mapping core.Mapping) error
	SaveInfluenceCurve(entryID string, droneIndex int, keyframes []core.Keyframe) error

	// Retrieval; both return nil without error when nothing was saved for
	// the key.
	LoadMapping(entryID string) (core.Mapping, error)
	LoadInfluenceCurve(entryID string, droneIndex int) ([]core.Keyframe, error)
}

// Exportable is an optional interface for storage backends that produce a
// self-contained show plan file.
type Exportable interface {
	// Export writes the current show plan and returns the path of the
	// written file.
	Export() (string, error)
}
