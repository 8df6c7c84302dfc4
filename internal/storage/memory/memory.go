// internal/storage/memory/memory.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/swarmstage/choreo/internal/config"
	"github.com/swarmstage/choreo/pkg/core"
)

// Backend stores the show plan in memory and exports it to JSON
type Backend struct {
	cfg config.MemoryConfig

	show       *core.ShowInfo
	formations map[string]core.PointSet
	mappings   map[string]core.Mapping
	curves     map[string]map[int][]core.Keyframe

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		formations: make(map[string]core.PointSet),
		mappings:   make(map[string]core.Mapping),
		curves:     make(map[string]map[int][]core.Keyframe),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveShow records the show metadata. Saving a show with a different name
// resets all recorded plan data.
func (b *Backend) SaveShow(info *core.ShowInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.show != nil && b.show.Name != info.Name {
		b.formations = make(map[string]core.PointSet)
		b.mappings = make(map[string]core.Mapping)
		b.curves = make(map[string]map[int][]core.Keyframe)
	}

	copied := *info
	b.show = &copied
	return nil
}

// SaveFormation records a named formation.
func (b *Backend) SaveFormation(name string, markers core.PointSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.formations[name] = markers.Clone()
	return nil
}

// SaveMapping records the drone-to-marker mapping of an entry, replacing any
// previous mapping for the same entry.
func (b *Backend) SaveMapping(entryID string, mapping core.Mapping) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mappings[entryID] = mapping.Clone()
	return nil
}

// SaveInfluenceCurve records the influence curve of one drone for an entry.
// Nil keyframes delete the stored curve.
func (b *Backend) SaveInfluenceCurve(entryID string, droneIndex int, keyframes []core.Keyframe) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if keyframes == nil {
		if perDrone, ok := b.curves[entryID]; ok {
			delete(perDrone, droneIndex)
			if len(perDrone) == 0 {
				delete(b.curves, entryID)
			}
		}
		return nil
	}

	perDrone, ok := b.curves[entryID]
	if !ok {
		perDrone = make(map[int][]core.Keyframe)
		b.curves[entryID] = perDrone
	}
	perDrone[droneIndex] = append([]core.Keyframe(nil), keyframes...)
	return nil
}

// LoadMapping returns the stored mapping of an entry, nil if none was saved.
func (b *Backend) LoadMapping(entryID string) (core.Mapping, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.mappings[entryID].Clone(), nil
}

// LoadInfluenceCurve returns the stored curve of one drone, nil if none was
// saved.
func (b *Backend) LoadInfluenceCurve(entryID string, droneIndex int) ([]core.Keyframe, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	perDrone, ok := b.curves[entryID]
	if !ok {
		return nil, nil
	}
	keyframes, ok := perDrone[droneIndex]
	if !ok {
		return nil, nil
	}
	return append([]core.Keyframe(nil), keyframes...), nil
}

// exportDocument is the JSON shape of an exported show plan.
type exportDocument struct {
	Show       *core.ShowInfo                        `json:"show"`
	Formations map[string][][3]float64               `json:"formations"`
	Mappings   map[string]core.Mapping               `json:"mappings"`
	Curves     map[string]map[string][]core.Keyframe `json:"curves"`
}

// Export writes the current show plan to a JSON file in the configured
// output directory and returns its path. With CompressOutput set the file is
// gzip-compressed.
func (b *Backend) Export() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.show == nil {
		return "", fmt.Errorf("no show to export")
	}

	doc := exportDocument{
		Show:       b.show,
		Formations: make(map[string][][3]float64, len(b.formations)),
		Mappings:   b.mappings,
		Curves:     make(map[string]map[string][]core.Keyframe, len(b.curves)),
	}
	for name, markers := range b.formations {
		encoded := make([][3]float64, len(markers))
		for i, p := range markers {
			encoded[i] = [3]float64{p.X, p.Y, p.Z}
		}
		doc.Formations[name] = encoded
	}
	for entryID, perDrone := range b.curves {
		encoded := make(map[string][]core.Keyframe, len(perDrone))
		for droneIndex, keyframes := range perDrone {
			encoded[strconv.Itoa(droneIndex)] = keyframes
		}
		doc.Curves[entryID] = encoded
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	filename := b.show.Name + ".plan.json"
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	path := filepath.Join(b.cfg.OutputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	if b.cfg.CompressOutput {
		zw := gzip.NewWriter(file)
		if err := json.NewEncoder(zw).Encode(doc); err != nil {
			zw.Close()
			return "", fmt.Errorf("encoding export: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("closing gzip writer: %w", err)
		}
	} else {
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return "", fmt.Errorf("encoding export: %w", err)
		}
	}

	return path, nil
}
