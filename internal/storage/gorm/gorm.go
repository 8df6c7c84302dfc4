// Package gormstorage implements the storage.Backend interface on a GORM
// database handle. It is dialect-agnostic; the sqlite and postgres packages
// compose it with their own connections. Formation markers are stored as WKB
// MultiPoints, mappings and keyframe lists as JSON columns, so the schema
// works on engines without spatial or array types.
package gormstorage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/swarmstage/choreo/internal/geo"
	"github.com/swarmstage/choreo/pkg/core"
)

// ShowRecord is the persisted show metadata.
type ShowRecord struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex"`
	NumDrones int
	Latitude  float64
	Longitude float64
}

// FormationRecord is a named formation with its markers as a WKB MultiPoint.
type FormationRecord struct {
	ID      uint   `gorm:"primarykey"`
	Name    string `gorm:"uniqueIndex"`
	Markers []byte
}

// MappingRecord is the drone-to-marker mapping of one storyboard entry.
type MappingRecord struct {
	ID      uint   `gorm:"primarykey"`
	EntryID string `gorm:"uniqueIndex"`
	Mapping datatypes.JSON
}

// CurveRecord is the influence curve of one drone within one entry.
type CurveRecord struct {
	ID         uint   `gorm:"primarykey"`
	EntryID    string `gorm:"index:idx_curve_key,unique"`
	DroneIndex int    `gorm:"index:idx_curve_key,unique"`
	Keyframes  datatypes.JSON
}

// Models lists every table of the plan schema, in migration order.
var Models = []any{
	&ShowRecord{},
	&FormationRecord{},
	&MappingRecord{},
	&CurveRecord{},
}

// Backend implements storage.Backend on a GORM database handle.
type Backend struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a GORM storage backend on the given handle.
func New(db *gorm.DB, log zerolog.Logger) *Backend {
	return &Backend{db: db, log: log}
}

// Init migrates the plan schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.log.Debug().Msg("Plan schema migrated")
	return nil
}

// Close releases the underlying connection.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveShow upserts the show metadata, keyed by name.
func (b *Backend) SaveShow(info *core.ShowInfo) error {
	record := ShowRecord{
		Name:      info.Name,
		NumDrones: info.NumDrones,
		Latitude:  info.Latitude,
		Longitude: info.Longitude,
	}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"num_drones", "latitude", "longitude"}),
	}).Create(&record).Error
}

// SaveFormation upserts a named formation, markers encoded as WKB.
func (b *Backend) SaveFormation(name string, markers core.PointSet) error {
	record := FormationRecord{
		Name:    name,
		Markers: geo.MarshalPointsWKB(markers),
	}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"markers"}),
	}).Create(&record).Error
}

// LoadFormation returns the markers of a stored formation, nil if the name
// is unknown.
func (b *Backend) LoadFormation(name string) (core.PointSet, error) {
	var record FormationRecord
	err := b.db.Where("name = ?", name).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return geo.UnmarshalPointsWKB(record.Markers)
}

// SaveMapping upserts the mapping of an entry.
func (b *Backend) SaveMapping(entryID string, mapping core.Mapping) error {
	encoded, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	record := MappingRecord{
		EntryID: entryID,
		Mapping: datatypes.JSON(encoded),
	}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mapping"}),
	}).Create(&record).Error
}

// SaveInfluenceCurve upserts the curve of one drone within an entry. Nil
// keyframes delete the stored curve.
func (b *Backend) SaveInfluenceCurve(entryID string, droneIndex int, keyframes []core.Keyframe) error {
	if keyframes == nil {
		return b.db.
			Where("entry_id = ? AND drone_index = ?", entryID, droneIndex).
			Delete(&CurveRecord{}).Error
	}

	encoded, err := json.Marshal(keyframes)
	if err != nil {
		return fmt.Errorf("encoding keyframes: %w", err)
	}
	record := CurveRecord{
		EntryID:    entryID,
		DroneIndex: droneIndex,
		Keyframes:  datatypes.JSON(encoded),
	}
	return b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_id"}, {Name: "drone_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"keyframes"}),
	}).Create(&record).Error
}

// LoadMapping returns the stored mapping of an entry, nil if none was saved.
func (b *Backend) LoadMapping(entryID string) (core.Mapping, error) {
	var record MappingRecord
	err := b.db.Where("entry_id = ?", entryID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var mapping core.Mapping
	if err := json.Unmarshal(record.Mapping, &mapping); err != nil {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}
	return mapping, nil
}

// LoadInfluenceCurve returns the stored curve of one drone, nil if none was
// saved.
func (b *Backend) LoadInfluenceCurve(entryID string, droneIndex int) ([]core.Keyframe, error) {
	var record CurveRecord
	err := b.db.
		Where("entry_id = ? AND drone_index = ?", entryID, droneIndex).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keyframes []core.Keyframe
	if err := json.Unmarshal(record.Keyframes, &keyframes); err != nil {
		return nil, fmt.Errorf("decoding keyframes: %w", err)
	}
	return keyframes, nil
}
