// internal/storage/factory.go
package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/config"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/database"
	gormstorage "github.com/mlmoleman/EPA133a-G07-A2/internal/storage/gorm"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/storage/memory"
	sqlitestorage "github.com/mlmoleman/EPA133a-G07-A2/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		manager := database.NewManager(log)
		if err := manager.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		log.Info().Msg("Postgres storage backend initialized")
		return gormstorage.New(gormstorage.Dependencies{
			Manager: manager,
			Logger:  log,
		}), nil

	case "sqlite":
		dumpPath := filepath.Join(cfg.SQLite.DumpDir, fmt.Sprintf("bridgesim_%s.db", time.Now().Format("20060102_150405")))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info().Msg("SQLite storage backend initialized")
		return backend, nil

	case "memory":
		log.Info().Msg("Memory storage backend initialized")
		return memory.New(cfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
