// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *model.Run, sc *model.Scenario) error
	EndRun(completedTicks uint, endTime time.Time) error

	// Registration
	AddSegment(s *model.SegmentRecord) error
	AddVehicle(v *model.VehicleRecord) error

	// State recording
	RecordTrip(trip *model.Trip) error
	RecordTrajectory(ts *model.TrajectoryState) error
	RecordBridgeState(bs *model.BridgeState) error
	RecordEvent(e *model.SimEvent) error
}

// Exportable is an optional interface for storage backends that leave a
// run artifact on disk when the run ends.
type Exportable interface {
	GetExportedFilePath() string
}

// Monitored is an optional interface for storage backends that expose
// write telemetry to the status monitor.
type Monitored interface {
	QueueLengths() model.QueueLengths
	LastWriteDuration() time.Duration
}

// PerformanceRecorder is an optional interface for storage backends that can
// persist the monitor's periodic performance samples.
type PerformanceRecorder interface {
	RecordPerformance(perf *model.RunPerformance) error
}
