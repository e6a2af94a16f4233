// Package gormstorage implements the storage.Backend interface on a GORM
// database with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/database"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/queue"
)

// Dependencies holds all dependencies for the GORM storage backend.
// A nil Manager puts the backend in queue-only mode, which unit tests
// use to exercise the queueing without a database.
type Dependencies struct {
	Manager *database.Manager
	Logger  zerolog.Logger
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Segments         *queue.Queue[model.SegmentRecord]
	Vehicles         *queue.Queue[model.VehicleRecord]
	Trips            *queue.Queue[model.Trip]
	TrajectoryStates *queue.Queue[model.TrajectoryState]
	BridgeStates     *queue.Queue[model.BridgeState]
	SimEvents        *queue.Queue[model.SimEvent]
}

func newQueues() *queues {
	return &queues{
		Segments:         queue.New[model.SegmentRecord](),
		Vehicles:         queue.New[model.VehicleRecord](),
		Trips:            queue.New[model.Trip](),
		TrajectoryStates: queue.New[model.TrajectoryState](),
		BridgeStates:     queue.New[model.BridgeState](),
		SimEvents:        queue.New[model.SimEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	runID    atomic.Uint64
	stopChan chan struct{}
	dbReady  bool

	mu                sync.Mutex
	lastWriteDuration time.Duration
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB
// writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.Manager != nil && b.deps.Manager.DB != nil {
		if err := b.deps.Manager.Setup(); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		if b.deps.Manager.SqlDB == nil {
			if sqlDB, err := b.deps.Manager.DB.DB(); err == nil {
				b.deps.Manager.SqlDB = sqlDB
			}
		}
		b.dbReady = true
	}

	b.startDBWriters()
	return nil
}

// Close stops the DB writer goroutine and closes the connection.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	if b.deps.Manager != nil {
		return b.deps.Manager.Close()
	}
	return nil
}

// StartRun performs scenario get-or-insert and run create in the DB.
// The DB-generated run ID is assigned back to the passed pointer and
// stored for the DB writer goroutine.
func (b *Backend) StartRun(run *model.Run, sc *model.Scenario) error {
	if !b.dbReady {
		return nil
	}

	db := b.deps.Manager.DB

	if _, err := sc.GetOrInsert(db); err != nil {
		return fmt.Errorf("failed to get or insert scenario: %w", err)
	}

	run.ScenarioID = sc.ID
	if err := db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to insert new run: %w", err)
	}

	b.runID.Store(uint64(run.ID))
	return nil
}

// EndRun drains the queues one last time and stamps the run row with its
// final tick count and end time.
func (b *Backend) EndRun(completedTicks uint, endTime time.Time) error {
	if !b.dbReady {
		return nil
	}

	b.flushAll()

	runID := uint(b.runID.Load())
	if runID == 0 {
		return nil
	}

	err := b.deps.Manager.DB.Model(&model.Run{}).Where("id = ?", runID).
		Updates(map[string]any{"completed_ticks": completedTicks, "end_time": endTime}).Error
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	return nil
}

// AddSegment queues a segment row for the next write cycle.
func (b *Backend) AddSegment(s *model.SegmentRecord) error {
	b.queues.Segments.Push(*s)
	return nil
}

// AddVehicle queues a vehicle row for the next write cycle.
func (b *Backend) AddVehicle(v *model.VehicleRecord) error {
	b.queues.Vehicles.Push(*v)
	return nil
}

// RecordTrip queues a completed trip row.
func (b *Backend) RecordTrip(trip *model.Trip) error {
	b.queues.Trips.Push(*trip)
	return nil
}

// RecordTrajectory queues a vehicle trajectory sample.
func (b *Backend) RecordTrajectory(ts *model.TrajectoryState) error {
	b.queues.TrajectoryStates.Push(*ts)
	return nil
}

// RecordBridgeState queues a bridge state change.
func (b *Backend) RecordBridgeState(bs *model.BridgeState) error {
	b.queues.BridgeStates.Push(*bs)
	return nil
}

// RecordEvent queues a simulation event row.
func (b *Backend) RecordEvent(e *model.SimEvent) error {
	b.queues.SimEvents.Push(*e)
	return nil
}

// QueueLengths reports how many rows are waiting in each write queue.
func (b *Backend) QueueLengths() model.QueueLengths {
	if b.queues == nil {
		return model.QueueLengths{}
	}
	return model.QueueLengths{
		Segments:         uint16(b.queues.Segments.Len()),
		Vehicles:         uint16(b.queues.Vehicles.Len()),
		Trips:            uint16(b.queues.Trips.Len()),
		TrajectoryStates: uint16(b.queues.TrajectoryStates.Len()),
		BridgeStates:     uint16(b.queues.BridgeStates.Len()),
		SimEvents:        uint16(b.queues.SimEvents.Len()),
	}
}

// LastWriteDuration returns how long the most recent non-empty write
// cycle took.
func (b *Backend) LastWriteDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWriteDuration
}

// RecordPerformance writes a monitor performance sample directly, outside
// the batch cycle. Samples taken before the run row exists are dropped.
func (b *Backend) RecordPerformance(perf *model.RunPerformance) error {
	if !b.dbReady {
		return nil
	}
	runID := uint(b.runID.Load())
	if runID == 0 {
		return nil
	}

	perf.RunID = runID
	if err := b.deps.Manager.DB.Create(perf).Error; err != nil {
		return fmt.Errorf("failed to record performance sample: %w", err)
	}
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
// A failed batch is pushed back so the next cycle retries it.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger, prepare func([]T)) bool {
	if q.Empty() {
		return false
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error writing batch")
		tx.Rollback()
		q.Push(items...)
		return false
	}

	tx.Commit()
	return true
}

// flushAll drains every queue into the database. Rows are stamped with
// the current run ID at write time, so rows queued before StartRun
// finishes are retried with the right run ID on a later cycle.
func (b *Backend) flushAll() {
	db := b.deps.Manager.DB
	log := b.deps.Logger

	// Read runID once per write cycle
	runID := uint(b.runID.Load())

	stampSegments := func(items []model.SegmentRecord) {
		for i := range items {
			items[i].RunID = runID
		}
	}
	stampVehicles := func(items []model.VehicleRecord) {
		for i := range items {
			items[i].RunID = runID
		}
	}
	stampTrips := func(items []model.Trip) {
		for i := range items {
			items[i].RunID = runID
		}
	}
	stampTrajectoryStates := func(items []model.TrajectoryState) {
		for i := range items {
			items[i].RunID = runID
		}
	}
	stampBridgeStates := func(items []model.BridgeState) {
		for i := range items {
			items[i].RunID = runID
		}
	}
	stampSimEvents := func(items []model.SimEvent) {
		for i := range items {
			items[i].RunID = runID
		}
	}

	start := time.Now()
	wrote := false

	// Registrations first, so trip and trajectory rows never reference a
	// vehicle row that is still queued.
	if writeQueue(db, b.queues.Segments, "segments", log, stampSegments) {
		wrote = true
	}
	if writeQueue(db, b.queues.Vehicles, "vehicles", log, stampVehicles) {
		wrote = true
	}
	if writeQueue(db, b.queues.Trips, "trips", log, stampTrips) {
		wrote = true
	}
	if writeQueue(db, b.queues.TrajectoryStates, "trajectory states", log, stampTrajectoryStates) {
		wrote = true
	}
	if writeQueue(db, b.queues.BridgeStates, "bridge states", log, stampBridgeStates) {
		wrote = true
	}
	if writeQueue(db, b.queues.SimEvents, "sim events", log, stampSimEvents) {
		wrote = true
	}

	if wrote {
		b.mu.Lock()
		b.lastWriteDuration = time.Since(start)
		b.mu.Unlock()
	}
}

// startDBWriters starts the background goroutine that periodically drains
// queues into the DB.
func (b *Backend) startDBWriters() {
	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			default:
			}

			if !b.dbReady {
				time.Sleep(1 * time.Second)
				continue
			}

			b.flushAll()
			time.Sleep(2 * time.Second)
		}
	}()
}
