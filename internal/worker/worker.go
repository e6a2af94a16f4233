package worker

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/logging"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/scenario"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/storage"
)

// Dependencies holds all dependencies for the recorder manager
type Dependencies struct {
	Scenario *scenario.Scenario
	Logger   zerolog.Logger
}

// Manager translates simulation events into storage records
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	trace   zerolog.Logger
}

// NewManager creates a recorder writing to the given backend
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{
		deps:    deps,
		backend: backend,
		trace:   logging.TraceSampled(deps.Logger),
	}
}

// RegisterSegments records every scenario element with the backend, in file
// order. Called once per run, before the first tick.
func (m *Manager) RegisterSegments() error {
	for _, el := range m.deps.Scenario.Elements {
		rec := model.SegmentRecord{
			SegmentID: int(el.ID),
			Road:      el.Road,
			Type:      el.Type,
			Name:      el.Name,
			LengthM:   el.LengthM,
			ChainageM: el.ChainageM,
			Location:  el.Point,
		}
		if el.Type == scenario.TypeBridge {
			rec.Condition = string(el.Condition)
		}
		if err := m.backend.AddSegment(&rec); err != nil {
			return fmt.Errorf("failed to register segment %d (%s): %w", el.ID, el.Name, err)
		}
	}
	return nil
}
