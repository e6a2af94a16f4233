// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/config"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
)

// VehicleTrace groups a truck with its recorded trajectory
type VehicleTrace struct {
	Vehicle model.VehicleRecord
	States  []model.TrajectoryState
}

// BridgeTrace groups a bridge segment with its state changes
type BridgeTrace struct {
	Segment model.SegmentRecord
	States  []model.BridgeState
}

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg      config.MemoryConfig
	run      *model.Run
	scenario *model.Scenario

	segments []model.SegmentRecord
	vehicles map[string]*VehicleTrace // keyed by vehicle name
	bridges  map[int]*BridgeTrace     // keyed by scenario segment id
	trips    []model.Trip
	events   []model.SimEvent

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		vehicles: make(map[string]*VehicleTrace),
		bridges:  make(map[int]*BridgeTrace),
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

// StartRun begins recording a new run
func (b *Backend) StartRun(run *model.Run, sc *model.Scenario) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.scenario = sc

	// Reset all collections
	b.segments = nil
	b.vehicles = make(map[string]*VehicleTrace)
	b.bridges = make(map[int]*BridgeTrace)
	b.trips = nil
	b.events = nil

	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun(completedTicks uint, endTime time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return nil
	}
	b.run.CompletedTicks = int(completedTicks)
	b.run.EndTime = endTime

	return b.exportJSON()
}

// AddSegment registers a road segment. Bridges also get a state trace.
func (b *Backend) AddSegment(s *model.SegmentRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.segments = append(b.segments, *s)
	if s.Type == "bridge" {
		b.bridges[s.SegmentID] = &BridgeTrace{
			Segment: *s,
			States:  make([]model.BridgeState, 0),
		}
	}
	return nil
}

// AddVehicle registers a generated truck
func (b *Backend) AddVehicle(v *model.VehicleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.vehicles[v.Name] = &VehicleTrace{
		Vehicle: *v,
		States:  make([]model.TrajectoryState, 0),
	}
	return nil
}

// GetVehicleByName looks up a registered truck by name
func (b *Backend) GetVehicleByName(name string) (*model.VehicleRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if trace, ok := b.vehicles[name]; ok {
		return &trace.Vehicle, true
	}
	return nil, false
}

// RecordTrip records a completed journey
func (b *Backend) RecordTrip(trip *model.Trip) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trips = append(b.trips, *trip)
	return nil
}

// RecordTrajectory appends a position sample to its truck's trace
func (b *Backend) RecordTrajectory(ts *model.TrajectoryState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trace, ok := b.vehicles[ts.VehicleName]; ok {
		trace.States = append(trace.States, *ts)
	}
	return nil // silently ignore if vehicle not found
}

// RecordBridgeState appends a state change to its bridge's trace
func (b *Backend) RecordBridgeState(bs *model.BridgeState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trace, ok := b.bridges[bs.SegmentID]; ok {
		trace.States = append(trace.States, *bs)
	}
	return nil
}

// RecordEvent records a simulation event
func (b *Backend) RecordEvent(e *model.SimEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, *e)
	return nil
}
