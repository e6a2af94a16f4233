package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/metrics"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/storage"
)

// Dependencies holds all dependencies for the monitor service. Metrics may
// be nil, which disables the influx performance series.
type Dependencies struct {
	Backend    storage.Backend
	Metrics    *metrics.Manager
	Logger     zerolog.Logger
	RunUID     string
	StatusPath string
	Interval   time.Duration
}

// Service snapshots the running simulation every interval and publishes the
// snapshot to the status file, the database, and influx.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	loopDone  sync.WaitGroup

	sawTick   bool
	lastTick  events.TickCompleted
	occupancy map[string]int

	lastStatusTick int
	lastStatusTime time.Time
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:      deps,
		stopChan:  make(chan struct{}),
		occupancy: make(map[string]int),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RegisterHandlers subscribes the monitor to the event stream. Both handlers
// are synchronous so a snapshot never lags the simulation.
func (s *Service) RegisterHandlers(bus *events.Bus) {
	bus.Subscribe(events.NameTickCompleted, s.handleTickCompleted)
	bus.Subscribe(events.NameVehicleMoved, s.handleVehicleMoved)
}

func (s *Service) handleTickCompleted(e events.Event) error {
	ev, ok := e.(events.TickCompleted)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameTickCompleted, e)
	}
	s.mu.Lock()
	s.sawTick = true
	s.lastTick = ev
	s.mu.Unlock()
	return nil
}

func (s *Service) handleVehicleMoved(e events.Event) error {
	ev, ok := e.(events.VehicleMoved)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameVehicleMoved, e)
	}
	s.mu.Lock()
	s.occupancy[ev.SegmentName]++
	s.mu.Unlock()
	return nil
}

// started reports whether at least one tick has completed.
func (s *Service) started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sawTick
}

// Status is one operator-facing snapshot of the run. SegmentOccupancy counts
// vehicle steps taken on each segment since the run began.
type Status struct {
	Time                time.Time          `json:"time"`
	Tick                int                `json:"tick"`
	TickRate            float32            `json:"tickRate"`
	ActiveVehicles      int                `json:"activeVehicles"`
	WaitingVehicles     int                `json:"waitingVehicles"`
	Generated           int                `json:"generated"`
	Removed             int                `json:"removed"`
	CollapsedBridges    int                `json:"collapsedBridges"`
	BridgesInRepair     int                `json:"bridgesInRepair"`
	AverageTripTimeMin  float64            `json:"averageTripTimeMin"`
	SegmentOccupancy    map[string]int     `json:"segmentOccupancy"`
	QueueLengths        model.QueueLengths `json:"queueLengths"`
	LastWriteDurationMs float32            `json:"lastWriteDurationMs"`
}

// Status returns the current run status and the performance row derived from
// it. The tick rate is measured between consecutive calls.
func (s *Service) Status() (Status, *model.RunPerformance) {
	s.mu.Lock()
	last := s.lastTick
	occupancy := make(map[string]int, len(s.occupancy))
	for name, count := range s.occupancy {
		occupancy[name] = count
	}

	now := time.Now()
	var rate float32
	if !s.lastStatusTime.IsZero() {
		elapsed := now.Sub(s.lastStatusTime).Seconds()
		if elapsed > 0 {
			rate = float32(float64(last.Tick-s.lastStatusTick) / elapsed)
		}
	}
	s.lastStatusTick = last.Tick
	s.lastStatusTime = now
	s.mu.Unlock()

	status := Status{
		Time:               now,
		Tick:               last.Tick,
		TickRate:           rate,
		ActiveVehicles:     last.ActiveVehicles,
		WaitingVehicles:    last.WaitingVehicles,
		Generated:          last.Generated,
		Removed:            last.Removed,
		CollapsedBridges:   last.CollapsedBridges,
		BridgesInRepair:    last.BridgesInRepair,
		AverageTripTimeMin: last.AverageTripTime,
		SegmentOccupancy:   occupancy,
	}

	if mon, ok := s.deps.Backend.(storage.Monitored); ok {
		status.QueueLengths = mon.QueueLengths()
		status.LastWriteDurationMs = float32(mon.LastWriteDuration().Milliseconds())
	}

	perf := &model.RunPerformance{
		Time:                status.Time,
		QueueLengths:        status.QueueLengths,
		TickRate:            status.TickRate,
		LastWriteDurationMs: status.LastWriteDurationMs,
	}

	return status, perf
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.loopDone.Add(1)
	go func() {
		defer s.loopDone.Done()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug().Str("path", s.deps.StatusPath).
			Msg("Starting status monitor goroutine")

		statusFile, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.deps.Logger.Error().Err(err).Msg("Error creating status file")
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(s.deps.Interval)

				if !s.started() {
					continue
				}

				status, perf := s.Status()

				if statusFile != nil {
					s.writeStatusFile(statusFile, status)
				}

				if recorder, ok := s.deps.Backend.(storage.PerformanceRecorder); ok {
					if err := recorder.RecordPerformance(perf); err != nil {
						s.deps.Logger.Error().Err(err).Msg("Error writing performance sample")
					}
				}

				if s.deps.Metrics != nil {
					err := s.deps.Metrics.WritePerformance(context.Background(), s.deps.RunUID, perf)
					if err != nil {
						s.deps.Logger.Error().Err(err).Msg("Error writing performance points to InfluxDB")
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the loop goroutine to exit,
// so no sample is written after Stop returns.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()
	s.loopDone.Wait()
}

// writeStatusFile rewrites the status file in place with the latest snapshot.
func (s *Service) writeStatusFile(f *os.File, status Status) {
	content, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		content = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}

	f.Truncate(0)
	f.Seek(0, 0)
	f.Write(content)
	f.WriteString("\n")
}
