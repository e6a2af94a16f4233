// Package sim implements a tick-based traffic simulation over a road
// network whose bridges degrade, collapse, and get repaired while trucks
// traverse the network between sources and sinks.
package sim

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
)

// Params configures a Simulation.
type Params struct {
	// VehicleSpeed is the truck speed in meters per minute.
	VehicleSpeed float64

	// DeteriorateInterval is the number of ticks between scheduled bridge
	// deterioration passes. 0 disables deterioration.
	DeteriorateInterval int
}

// RouteProvider resolves the route a newly generated vehicle will follow
// from its origin.
type RouteProvider interface {
	Route(origin SegmentID) ([]SegmentID, error)
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the simulation logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulation) {
		s.log = log
	}
}

// WithPublisher sets the event publisher simulation events are sent to.
func WithPublisher(p events.Publisher) Option {
	return func(s *Simulation) {
		s.events = p
	}
}

// Simulation owns the segment registry and advances all registered entities
// tick by tick. Entities are activated in registration order: first the
// infrastructure in scenario order, then vehicles in generation order.
type Simulation struct {
	params Params
	routes RouteProvider
	log    zerolog.Logger
	events events.Publisher

	segments map[SegmentID]Segment
	segOrder []SegmentID

	entities map[string]Entity
	order    []string

	tick   int
	trucks TruckCounter

	tripTimes []int
	generated int
	removed   int
}

// New creates an empty simulation. Segments are added with AddSegment before
// the first tick runs.
func New(params Params, routes RouteProvider, opts ...Option) *Simulation {
	s := &Simulation{
		params:   params,
		routes:   routes,
		log:      zerolog.Nop(),
		segments: make(map[SegmentID]Segment),
		entities: make(map[string]Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick returns the current tick. During an activation this is the index of
// the tick being executed; it increments once the whole tick completes.
func (s *Simulation) Tick() int { return s.tick }

// Segment looks up a registered segment by id.
func (s *Simulation) Segment(id SegmentID) (Segment, error) {
	seg, ok := s.segments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSegment, id)
	}
	return seg, nil
}

// Segments returns all registered segments in registration order.
func (s *Simulation) Segments() []Segment {
	out := make([]Segment, 0, len(s.segOrder))
	for _, id := range s.segOrder {
		out = append(out, s.segments[id])
	}
	return out
}

// Bridges returns all registered bridges in registration order.
func (s *Simulation) Bridges() []*BridgeSegment {
	var out []*BridgeSegment
	for _, id := range s.segOrder {
		if b, ok := s.segments[id].(*BridgeSegment); ok {
			out = append(out, b)
		}
	}
	return out
}

// Vehicles returns the vehicles currently on the network in generation
// order.
func (s *Simulation) Vehicles() []*Vehicle {
	var out []*Vehicle
	for _, key := range s.order {
		if v, ok := s.entities[key].(*Vehicle); ok {
			out = append(out, v)
		}
	}
	return out
}

// TripTimes returns the travel times of all completed trips in ticks.
func (s *Simulation) TripTimes() []int {
	out := make([]int, len(s.tripTimes))
	copy(out, s.tripTimes)
	return out
}

// AddSegment registers a segment and schedules it for activation.
func (s *Simulation) AddSegment(seg Segment) error {
	if _, exists := s.segments[seg.ID()]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateSegment, seg.ID())
	}
	s.segments[seg.ID()] = seg
	s.segOrder = append(s.segOrder, seg.ID())

	ent, ok := seg.(Entity)
	if !ok {
		return fmt.Errorf("segment %d (%s) is not steppable", seg.ID(), seg.Name())
	}
	key := segKey(seg.ID())
	s.entities[key] = ent
	s.order = append(s.order, key)
	return nil
}

// Run advances the simulation the given number of ticks, stopping early if
// the context is cancelled or a tick fails.
func (s *Simulation) Run(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.StepTick(); err != nil {
			return fmt.Errorf("tick %d: %w", s.tick, err)
		}
	}
	return nil
}

// StepTick executes one tick: every entity registered at the start of the
// tick is activated once, in registration order. Entities added during the
// tick first activate next tick; entities removed during the tick are
// skipped. A failing activation aborts the tick without counting it.
func (s *Simulation) StepTick() error {
	snapshot := make([]string, len(s.order))
	copy(snapshot, s.order)

	for _, key := range snapshot {
		ent, ok := s.entities[key]
		if !ok {
			continue
		}
		if err := ent.Step(s); err != nil {
			return err
		}
	}

	if s.params.DeteriorateInterval > 0 && s.tick > 0 && s.tick%s.params.DeteriorateInterval == 0 {
		s.deteriorateBridges()
	}

	stats := s.Stats()
	s.publish(events.TickCompleted{
		Tick:             stats.Tick,
		ActiveVehicles:   stats.Active,
		WaitingVehicles:  stats.Waiting,
		Generated:        stats.Generated,
		Removed:          stats.Removed,
		CollapsedBridges: stats.CollapsedBridges,
		BridgesInRepair:  stats.BridgesInRepair,
		AverageTripTime:  stats.AverageTripTime,
	})

	s.compactOrder()
	s.tick++
	return nil
}

// deteriorateBridges moves every bridge one condition grade down. A bridge
// pushed into the collapsed grade this way emits the same collapse event as
// a stochastic collapse; already collapsed bridges stay where they are and
// emit nothing.
func (s *Simulation) deteriorateBridges() {
	for _, b := range s.Bridges() {
		was := b.Condition()
		b.Deteriorate()
		now := b.Condition()
		if was == now {
			continue
		}
		if now.Collapsed() {
			s.publish(events.BridgeCollapsed{
				Tick:       s.tick,
				Bridge:     int(b.ID()),
				BridgeName: b.Name(),
				Road:       b.Road(),
			})
		} else {
			s.publish(events.BridgeDeteriorated{
				Tick:       s.tick,
				Bridge:     int(b.ID()),
				BridgeName: b.Name(),
				Road:       b.Road(),
				Condition:  string(now),
			})
		}
	}
}

// Stats summarizes the state of the run up to the current tick.
type Stats struct {
	Tick             int
	Generated        int
	Removed          int
	Active           int
	Waiting          int
	CollapsedBridges int
	BridgesInRepair  int
	AverageTripTime  float64
}

// Stats returns the current run statistics.
func (s *Simulation) Stats() Stats {
	collapsed := 0
	inRepair := 0
	for _, b := range s.Bridges() {
		if b.Condition().Collapsed() {
			collapsed++
		}
		if b.InRepair() {
			inRepair++
		}
	}

	waiting := 0
	for _, v := range s.Vehicles() {
		if v.State() == StateWaiting {
			waiting++
		}
	}

	avg := 0.0
	if len(s.tripTimes) > 0 {
		sum := 0
		for _, t := range s.tripTimes {
			sum += t
		}
		avg = float64(sum) / float64(len(s.tripTimes))
	}

	return Stats{
		Tick:             s.tick,
		Generated:        s.generated,
		Removed:          s.removed,
		Active:           s.generated - s.removed,
		Waiting:          waiting,
		CollapsedBridges: collapsed,
		BridgesInRepair:  inRepair,
		AverageTripTime:  avg,
	}
}

func (s *Simulation) publish(e events.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

func (s *Simulation) nextTruckName() string {
	return s.trucks.Next()
}

func (s *Simulation) registerVehicle(v *Vehicle) {
	s.entities[v.name] = v
	s.order = append(s.order, v.name)
	s.generated++
}

func (s *Simulation) deregisterVehicle(v *Vehicle) {
	delete(s.entities, v.name)
}

// recordTrip books a completed trip and announces the removal.
func (s *Simulation) recordTrip(v *Vehicle) {
	s.removed++
	s.tripTimes = append(s.tripTimes, v.TripTime())
	s.publish(events.VehicleRemoved{
		Tick:       s.tick,
		Vehicle:    v.name,
		Sink:       int(v.location.ID()),
		SinkName:   v.location.Name(),
		TravelTime: v.TripTime(),
	})
}

// compactOrder drops activation keys whose entities have been removed.
func (s *Simulation) compactOrder() {
	if len(s.order) == len(s.entities) {
		return
	}
	kept := s.order[:0]
	for _, key := range s.order {
		if _, ok := s.entities[key]; ok {
			kept = append(kept, key)
		}
	}
	s.order = kept
}

func segKey(id SegmentID) string {
	return "segment:" + strconv.Itoa(int(id))
}
