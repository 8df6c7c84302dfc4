// Package postgres implements the storage.Backend interface using
// GORM/PostgreSQL. It wraps the GORM backend via composition; the connection
// is built lazily on Init from viper config, so constructing the backend
// never touches the network.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/swarmstage/choreo/internal/database"
	gormstorage "github.com/swarmstage/choreo/internal/storage/gorm"
)

// Backend wraps the GORM backend for PostgreSQL-specific behavior.
type Backend struct {
	*gormstorage.Backend
	log zerolog.Logger
}

// New creates a new PostgreSQL storage backend.
func New(log zerolog.Logger) *Backend {
	return &Backend{log: log}
}

// Init connects to the configured PostgreSQL server, validates the
// connection, and migrates the plan schema.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDB()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	b.Backend = gormstorage.New(db, b.log)
	b.log.Info().Msg("Connected to PostgreSQL")
	return b.Backend.Init()
}

// Close closes the embedded GORM backend.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
