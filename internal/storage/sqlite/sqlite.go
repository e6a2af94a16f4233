// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition — the only SQLite-specific concerns are
// (a) creating the in-memory DB, (b) the periodic disk dump, and (c) the final
// dump when the run ends.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/database"
	gormstorage "github.com/mlmoleman/EPA133a-G07-A2/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	manager  *database.Manager
	cfg      Config
	log      zerolog.Logger
	stopChan chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	manager := database.NewManager(log)
	db, err := manager.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	manager.DB = db
	manager.ShouldSaveLocal = true
	manager.IsValid = true
	manager.SqliteFilePath = cfg.DumpPath

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		Manager: manager,
		Logger:  log,
	})

	return &Backend{
		Backend:  gormBackend,
		manager:  manager,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" {
		if err := os.MkdirAll(filepath.Dir(b.cfg.DumpPath), 0755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
		if b.cfg.DumpInterval > 0 {
			go b.dumpLoop()
		}
	}

	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	close(b.stopChan)
	return b.Backend.Close()
}

// EndRun finalizes the run in the embedded backend and takes a last
// snapshot so the finished run is on disk in full.
func (b *Backend) EndRun(completedTicks uint, endTime time.Time) error {
	if err := b.Backend.EndRun(completedTicks, endTime); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" {
		if err := b.manager.DumpMemoryToDisk(); err != nil {
			return fmt.Errorf("failed to dump run database: %w", err)
		}
	}
	return nil
}

// GetExportedFilePath returns the path of the on-disk database dump.
func (b *Backend) GetExportedFilePath() string {
	return b.cfg.DumpPath
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.manager.DumpMemoryToDisk(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping memory DB to disk")
			}
		}
	}
}
