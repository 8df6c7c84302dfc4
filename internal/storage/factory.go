// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/swarmstage/choreo/internal/config"
	"github.com/swarmstage/choreo/internal/storage/memory"
	"github.com/swarmstage/choreo/internal/storage/postgres"
	sqlitestorage "github.com/swarmstage/choreo/internal/storage/sqlite"
)

// Compile-time interface checks for every backend the factory can return.
var (
	_ Backend = (*memory.Backend)(nil)
	_ Backend = (*sqlitestorage.Backend)(nil)
	_ Backend = (*postgres.Backend)(nil)
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(log), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{Path: cfg.Sqlite.Path}, log)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
