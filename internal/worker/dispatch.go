package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/model"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/sim"
)

// RegisterHandlers subscribes the recorder to every event the simulation
// publishes.
func (m *Manager) RegisterHandlers(bus *events.Bus) {
	// Vehicle registration - sync (row must be queued before its states)
	bus.Subscribe(events.NameVehicleGenerated, m.handleVehicleGenerated, events.Logged())

	// High-volume position updates - buffered
	bus.Subscribe(events.NameVehicleMoved, m.handleVehicleMoved, events.Buffered(10000), events.Logged())

	// Trip completions - buffered
	bus.Subscribe(events.NameVehicleRemoved, m.handleVehicleRemoved, events.Buffered(2000), events.Logged())

	// Bridge transitions - buffered
	bus.Subscribe(events.NameBridgeCollapsed, m.handleBridgeCollapsed, events.Buffered(1000), events.Logged())
	bus.Subscribe(events.NameBridgeDeteriorated, m.handleBridgeDeteriorated, events.Buffered(1000), events.Logged())
	bus.Subscribe(events.NameBridgeRepairStarted, m.handleBridgeRepairStarted, events.Buffered(1000), events.Logged())
	bus.Subscribe(events.NameBridgeRepaired, m.handleBridgeRepaired, events.Buffered(1000), events.Logged())

	// Generation misses - buffered
	bus.Subscribe(events.NameGenerationSkipped, m.handleGenerationSkipped, events.Buffered(1000), events.Logged())
}

func (m *Manager) handleVehicleGenerated(e events.Event) error {
	ev, ok := e.(events.VehicleGenerated)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameVehicleGenerated, e)
	}

	rec := model.VehicleRecord{
		Time:          time.Now(),
		Name:          ev.Vehicle,
		OriginID:      ev.Origin,
		GeneratedTick: uint(ev.Tick),
	}
	if err := m.backend.AddVehicle(&rec); err != nil {
		return fmt.Errorf("failed to record generated vehicle: %w", err)
	}
	return nil
}

func (m *Manager) handleVehicleMoved(e events.Event) error {
	ev, ok := e.(events.VehicleMoved)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameVehicleMoved, e)
	}

	position, found := m.deps.Scenario.Locate(sim.SegmentID(ev.Segment), ev.Offset)
	if !found {
		m.deps.Logger.Warn().Int("segment", ev.Segment).Str("vehicle", ev.Vehicle).Msg("Vehicle moved on a segment the scenario does not know")
	}

	m.trace.Trace().
		Int("tick", ev.Tick).
		Str("vehicle", ev.Vehicle).
		Str("segment", ev.SegmentName).
		Float64("offset", ev.Offset).
		Str("state", ev.State).
		Msg("Vehicle moved")

	state := model.TrajectoryState{
		Time:           time.Now(),
		Tick:           uint(ev.Tick),
		VehicleName:    ev.Vehicle,
		SegmentID:      ev.Segment,
		OffsetM:        ev.Offset,
		State:          ev.State,
		WaitingTimeMin: ev.WaitingTime,
		Position:       position,
	}
	if err := m.backend.RecordTrajectory(&state); err != nil {
		return fmt.Errorf("failed to record trajectory state: %w", err)
	}
	return nil
}

func (m *Manager) handleVehicleRemoved(e events.Event) error {
	ev, ok := e.(events.VehicleRemoved)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameVehicleRemoved, e)
	}

	trip := model.Trip{
		Time:          time.Now(),
		VehicleName:   ev.Vehicle,
		DestinationID: ev.Sink,
		GeneratedTick: uint(ev.Tick - ev.TravelTime),
		RemovedTick:   uint(ev.Tick),
		TravelTimeMin: ev.TravelTime,
	}
	if err := m.backend.RecordTrip(&trip); err != nil {
		return fmt.Errorf("failed to record trip: %w", err)
	}
	return nil
}

func (m *Manager) handleBridgeCollapsed(e events.Event) error {
	ev, ok := e.(events.BridgeCollapsed)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameBridgeCollapsed, e)
	}

	m.deps.Logger.Info().Int("tick", ev.Tick).Str("bridge", ev.BridgeName).Str("road", ev.Road).Msg("Bridge collapsed")

	bs := model.BridgeState{
		Time:       time.Now(),
		Tick:       uint(ev.Tick),
		SegmentID:  ev.Bridge,
		Name:       ev.BridgeName,
		Condition:  string(sim.ConditionX),
		Transition: model.TransitionCollapsed,
	}
	if err := m.backend.RecordBridgeState(&bs); err != nil {
		return fmt.Errorf("failed to record bridge collapse: %w", err)
	}
	return m.recordRaw(ev.Tick, ev)
}

func (m *Manager) handleBridgeDeteriorated(e events.Event) error {
	ev, ok := e.(events.BridgeDeteriorated)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameBridgeDeteriorated, e)
	}

	m.deps.Logger.Debug().Int("tick", ev.Tick).Str("bridge", ev.BridgeName).Str("condition", ev.Condition).Msg("Bridge deteriorated")

	bs := model.BridgeState{
		Time:       time.Now(),
		Tick:       uint(ev.Tick),
		SegmentID:  ev.Bridge,
		Name:       ev.BridgeName,
		Condition:  ev.Condition,
		Transition: model.TransitionDeteriorated,
	}
	if err := m.backend.RecordBridgeState(&bs); err != nil {
		return fmt.Errorf("failed to record bridge deterioration: %w", err)
	}
	return m.recordRaw(ev.Tick, ev)
}

func (m *Manager) handleBridgeRepairStarted(e events.Event) error {
	ev, ok := e.(events.BridgeRepairStarted)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameBridgeRepairStarted, e)
	}

	m.deps.Logger.Info().Int("tick", ev.Tick).Str("bridge", ev.BridgeName).Float64("delayMin", ev.Delay).Msg("Bridge repair started")

	bs := model.BridgeState{
		Time:       time.Now(),
		Tick:       uint(ev.Tick),
		SegmentID:  ev.Bridge,
		Name:       ev.BridgeName,
		Condition:  string(sim.ConditionX),
		InRepair:   true,
		DelayMin:   ev.Delay,
		Transition: model.TransitionRepairStarted,
	}
	if err := m.backend.RecordBridgeState(&bs); err != nil {
		return fmt.Errorf("failed to record bridge repair start: %w", err)
	}
	return m.recordRaw(ev.Tick, ev)
}

func (m *Manager) handleBridgeRepaired(e events.Event) error {
	ev, ok := e.(events.BridgeRepaired)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameBridgeRepaired, e)
	}

	m.deps.Logger.Info().Int("tick", ev.Tick).Str("bridge", ev.BridgeName).Msg("Bridge repaired")

	bs := model.BridgeState{
		Time:       time.Now(),
		Tick:       uint(ev.Tick),
		SegmentID:  ev.Bridge,
		Name:       ev.BridgeName,
		Condition:  string(sim.ConditionA),
		Transition: model.TransitionRepaired,
	}
	if err := m.backend.RecordBridgeState(&bs); err != nil {
		return fmt.Errorf("failed to record bridge repair: %w", err)
	}
	return m.recordRaw(ev.Tick, ev)
}

func (m *Manager) handleGenerationSkipped(e events.Event) error {
	ev, ok := e.(events.GenerationSkipped)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", events.NameGenerationSkipped, e)
	}

	m.deps.Logger.Warn().Int("tick", ev.Tick).Str("origin", ev.OriginName).Str("reason", ev.Reason).Msg("Vehicle generation skipped")
	return m.recordRaw(ev.Tick, ev)
}

// recordRaw keeps the full event payload for offline analysis. Only the
// low-volume events are kept raw; vehicle movement already lands in its own
// table.
func (m *Manager) recordRaw(tick int, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", e.Name(), err)
	}
	evt := model.SimEvent{
		Time:    time.Now(),
		Tick:    uint(tick),
		Name:    e.Name(),
		Payload: datatypes.JSON(payload),
	}
	if err := m.backend.RecordEvent(&evt); err != nil {
		return fmt.Errorf("failed to record %s event: %w", e.Name(), err)
	}
	return nil
}
