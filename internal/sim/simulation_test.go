package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
)

// truckSpeed is the default truck speed in meters per minute.
const truckSpeed = 50 * 1000.0 / 60

// routeMap is a static RouteProvider for tests.
type routeMap map[SegmentID][]SegmentID

func (r routeMap) Route(origin SegmentID) ([]SegmentID, error) {
	route, ok := r[origin]
	if !ok {
		return nil, ErrNoRoute
	}
	return route, nil
}

// eventCaptor records every published event in order.
type eventCaptor struct {
	all []events.Event
}

func (c *eventCaptor) Publish(e events.Event) { c.all = append(c.all, e) }

func (c *eventCaptor) byName(name string) []events.Event {
	var out []events.Event
	for _, e := range c.all {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

// newLineNetwork builds a source, n links of the given length, and a sink on
// one road, returning the simulation and the segments in order.
func newLineNetwork(t *testing.T, params Params, interval int, linkLength float64, n int, captor *eventCaptor) (*Simulation, []Segment) {
	t.Helper()

	ids := make([]SegmentID, 0, n+2)
	segments := make([]Segment, 0, n+2)

	source := NewSource(1, "N1", "source", 1, interval)
	ids = append(ids, 1)
	segments = append(segments, source)

	for i := 0; i < n; i++ {
		id := SegmentID(2 + i)
		link := NewLink(id, "N1", "link", linkLength)
		ids = append(ids, id)
		segments = append(segments, link)
	}

	sink := NewSink(SegmentID(2+n), "N1", "sink", 1)
	ids = append(ids, sink.ID())
	segments = append(segments, sink)

	var opts []Option
	if captor != nil {
		opts = append(opts, WithPublisher(captor))
	}
	s := New(params, routeMap{1: ids}, opts...)
	for _, seg := range segments {
		require.NoError(t, s.AddSegment(seg))
	}
	return s, segments
}

func TestSimulation_AddSegmentRejectsDuplicates(t *testing.T) {
	s := New(Params{}, nil)

	require.NoError(t, s.AddSegment(NewLink(1, "N1", "link", 100)))
	err := s.AddSegment(NewLink(1, "N1", "other", 100))

	assert.ErrorIs(t, err, ErrDuplicateSegment)
}

func TestSimulation_SegmentLookup(t *testing.T) {
	s := New(Params{}, nil)
	link := NewLink(7, "N1", "link", 100)
	require.NoError(t, s.AddSegment(link))

	got, err := s.Segment(7)
	require.NoError(t, err)
	assert.Equal(t, Segment(link), got)

	_, err = s.Segment(99)
	assert.ErrorIs(t, err, ErrUnknownSegment)
}

func TestSimulation_GeneratesOnInterval(t *testing.T) {
	s, _ := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 5, 5000, 3, nil)

	// Generation ticks are 0, 5 and 10.
	require.NoError(t, s.Run(context.Background(), 11))

	stats := s.Stats()
	assert.Equal(t, 3, stats.Generated)
	assert.Equal(t, 3, s.trucks.Value())
}

func TestSimulation_VehicleFirstMovesTickAfterGeneration(t *testing.T) {
	s, segments := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 5, 5000, 3, nil)

	require.NoError(t, s.StepTick())

	vehicles := s.Vehicles()
	require.Len(t, vehicles, 1)
	assert.Equal(t, "Truck0", vehicles[0].Name())
	assert.Equal(t, segments[0], vehicles[0].Location())
	assert.Zero(t, vehicles[0].Offset())

	require.NoError(t, s.StepTick())
	assert.NotEqual(t, segments[0], vehicles[0].Location())
}

func TestSimulation_OneHopTripTakesOneTick(t *testing.T) {
	captor := &eventCaptor{}
	// A single short link: the truck crosses everything in its first move.
	s, _ := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 100, 10, 1, captor)

	require.NoError(t, s.Run(context.Background(), 2))

	stats := s.Stats()
	assert.Equal(t, 1, stats.Generated)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, []int{1}, s.TripTimes())

	removed := captor.byName(events.NameVehicleRemoved)
	require.Len(t, removed, 1)
	ev := removed[0].(events.VehicleRemoved)
	assert.Equal(t, "Truck0", ev.Vehicle)
	assert.Equal(t, 1, ev.TravelTime)
}

func TestSimulation_TravelTimeMatchesDistance(t *testing.T) {
	// 10 links of 5000 m make a 50 km corridor. At 50 km/h the trip takes
	// one hour of one-minute ticks.
	s, _ := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 1000, 5000, 10, nil)

	require.NoError(t, s.Run(context.Background(), 70))

	trips := s.TripTimes()
	require.Len(t, trips, 1)
	assert.InDelta(t, 61, trips[0], 1)
}

func TestSimulation_ConservationOfVehicles(t *testing.T) {
	s, _ := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 5, 5000, 4, nil)

	for i := 0; i < 200; i++ {
		require.NoError(t, s.StepTick())
		stats := s.Stats()
		assert.Equal(t, stats.Generated, stats.Active+stats.Removed)
		assert.Len(t, s.Vehicles(), stats.Active)
	}

	stats := s.Stats()
	assert.Positive(t, stats.Generated)
	assert.Positive(t, stats.Removed)
}

func TestSimulation_SinkOccupancyAccumulates(t *testing.T) {
	s, segments := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 5, 10, 1, nil)
	sink := segments[len(segments)-1]

	require.NoError(t, s.Run(context.Background(), 12))

	// Trucks from ticks 0, 5 and 10 have arrived; sinks never release.
	assert.Equal(t, 3, s.Stats().Removed)
	assert.Equal(t, 3, sink.Occupancy())
}

func TestSimulation_RouteExhaustionFailsTheTick(t *testing.T) {
	source := NewSource(1, "N1", "source", 1, 100)
	link := NewLink(2, "N1", "link", 10)

	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{1: {1, 2}})
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(link))

	err := s.Run(context.Background(), 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRouteExhausted)
}

func TestSimulation_RouteThroughUnknownSegmentFails(t *testing.T) {
	source := NewSource(1, "N1", "source", 1, 100)

	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{1: {1, 99}})
	require.NoError(t, s.AddSegment(source))

	err := s.Run(context.Background(), 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSegment)
}

func TestSimulation_SkippedGenerationKeepsNumbering(t *testing.T) {
	captor := &eventCaptor{}
	source := NewSource(1, "N1", "source", 1, 1)

	// No route exists for the origin, so every generation attempt fails.
	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{}, WithPublisher(captor))
	require.NoError(t, s.AddSegment(source))

	require.NoError(t, s.Run(context.Background(), 3))

	assert.Zero(t, s.Stats().Generated)
	assert.Zero(t, s.trucks.Value())
	assert.False(t, source.GeneratedThisTick())

	skipped := captor.byName(events.NameGenerationSkipped)
	require.Len(t, skipped, 3)
	ev := skipped[0].(events.GenerationSkipped)
	assert.Equal(t, 1, ev.Origin)
	assert.Contains(t, ev.Reason, "no route")
}

func TestSimulation_WaitAtBridgeUnderRepair(t *testing.T) {
	source := NewSource(1, "N1", "source", 1, 1000)
	bridge := newTestBridge(t, 5, ConditionD, 0.0)
	bridge.baseSegment.id = 2
	sink := NewSink(3, "N1", "sink", 1)

	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{1: {1, 2, 3}})
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(bridge))
	require.NoError(t, s.AddSegment(sink))

	// Collapse before any traffic: the repair starts during tick 0 and the
	// tiny bridge draws a delay between 10 and 20 minutes.
	bridge.Deteriorate()

	require.NoError(t, s.StepTick())
	require.NoError(t, s.StepTick())

	vehicles := s.Vehicles()
	require.Len(t, vehicles, 1)
	truck := vehicles[0]
	assert.Equal(t, StateWaiting, truck.State())
	assert.Equal(t, Segment(bridge), truck.Location())
	assert.GreaterOrEqual(t, truck.WaitingTime(), 10.0)
	assert.LessOrEqual(t, truck.WaitingTime(), 20.0)

	require.NoError(t, s.Run(context.Background(), 25))

	stats := s.Stats()
	require.Equal(t, 1, stats.Removed)
	trip := s.TripTimes()[0]
	assert.GreaterOrEqual(t, trip, 11)
	assert.LessOrEqual(t, trip, 21)
	assert.Equal(t, Segment(bridge), truck.WaitedAt())
}

func TestSimulation_PassableBridgeDoesNotDelay(t *testing.T) {
	source := NewSource(1, "N1", "source", 1, 1000)
	bridge := newTestBridge(t, 5, ConditionA, 0.0)
	bridge.baseSegment.id = 2
	sink := NewSink(3, "N1", "sink", 1)

	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{1: {1, 2, 3}})
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(bridge))
	require.NoError(t, s.AddSegment(sink))

	require.NoError(t, s.Run(context.Background(), 2))

	assert.Equal(t, []int{1}, s.TripTimes())
}

func TestSimulation_RightSpanBridgeIsSkipped(t *testing.T) {
	source := NewSource(1, "N1", "source", 1, 1000)
	bridge, err := NewBridge(2, "N1", "Kanchpur (R", 5, ConditionD, testProbabilities(1.0), DefaultDelayBands, NewStream(t.Name(), 1))
	require.NoError(t, err)
	link := NewLink(3, "N1", "link", 2000)
	sink := NewSink(4, "N1", "sink", 1)

	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{1: {1, 2, 3, 4}})
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(bridge))
	require.NoError(t, s.AddSegment(link))
	require.NoError(t, s.AddSegment(sink))

	// Tick 0 generates the truck; tick 1 reaches the right span and stops
	// there without entering or waiting.
	require.NoError(t, s.StepTick())
	require.NoError(t, s.StepTick())

	truck := s.Vehicles()[0]
	assert.Equal(t, Segment(source), truck.Location())
	assert.Equal(t, StateDriving, truck.State())
	assert.Zero(t, truck.WaitingTime())
	assert.Equal(t, "Kanchpur (R", truck.NextBridge())
	assert.Zero(t, bridge.Occupancy())

	// Tick 2 continues past the skipped span onto the link.
	require.NoError(t, s.StepTick())
	assert.Equal(t, Segment(link), truck.Location())
	assert.InDelta(t, truckSpeed-1, truck.Offset(), 0.01)
}

func TestSimulation_DeteriorationPassCollapsesWornBridge(t *testing.T) {
	captor := &eventCaptor{}
	source := NewSource(1, "N1", "source", 1, 1000000)
	bridge := newTestBridge(t, 5, ConditionD, 0.0)
	bridge.baseSegment.id = 2
	sink := NewSink(3, "N1", "sink", 1)

	s := New(Params{VehicleSpeed: truckSpeed, DeteriorateInterval: 2}, routeMap{1: {1, 2, 3}}, WithPublisher(captor))
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(bridge))
	require.NoError(t, s.AddSegment(sink))

	// Ticks 0 and 1 leave the bridge alone; the pass at tick 2 pushes the
	// grade from D to X.
	require.NoError(t, s.StepTick())
	require.NoError(t, s.StepTick())
	assert.Equal(t, ConditionD, bridge.Condition())

	require.NoError(t, s.StepTick())
	assert.Equal(t, ConditionX, bridge.Condition())

	collapses := captor.byName(events.NameBridgeCollapsed)
	require.Len(t, collapses, 1)
	assert.Equal(t, 2, collapses[0].(events.BridgeCollapsed).Tick)
}

func TestSimulation_DeteriorationPassEmitsGradeChange(t *testing.T) {
	captor := &eventCaptor{}
	source := NewSource(1, "N1", "source", 1, 1000000)
	bridge := newTestBridge(t, 5, ConditionB, 0.0)
	bridge.baseSegment.id = 2
	sink := NewSink(3, "N1", "sink", 1)

	s := New(Params{VehicleSpeed: truckSpeed, DeteriorateInterval: 2}, routeMap{1: {1, 2, 3}}, WithPublisher(captor))
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(bridge))
	require.NoError(t, s.AddSegment(sink))

	require.NoError(t, s.Run(context.Background(), 5))
	assert.Equal(t, ConditionD, bridge.Condition())

	worn := captor.byName(events.NameBridgeDeteriorated)
	require.Len(t, worn, 2)
	first := worn[0].(events.BridgeDeteriorated)
	assert.Equal(t, 2, first.Tick)
	assert.Equal(t, string(ConditionC), first.Condition)
	assert.Equal(t, string(ConditionD), worn[1].(events.BridgeDeteriorated).Condition)
	assert.Empty(t, captor.byName(events.NameBridgeCollapsed))
}

func TestSimulation_TickCompletedCarriesRunningTotals(t *testing.T) {
	captor := &eventCaptor{}
	s, _ := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 5, 10, 1, captor)

	require.NoError(t, s.Run(context.Background(), 6))

	ticks := captor.byName(events.NameTickCompleted)
	require.Len(t, ticks, 6)

	first := ticks[0].(events.TickCompleted)
	assert.Equal(t, 0, first.Tick)
	assert.Equal(t, 1, first.Generated)

	// The truck from tick 0 finished its one-hop trip during tick 1.
	second := ticks[1].(events.TickCompleted)
	assert.Equal(t, 1, second.Removed)
	assert.Equal(t, 0, second.ActiveVehicles)
}

func TestSimulation_RunHonorsContext(t *testing.T) {
	s, _ := newLineNetwork(t, Params{VehicleSpeed: truckSpeed}, 5, 5000, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Tick())
}

func TestSimulation_FailedTickIsNotCounted(t *testing.T) {
	source := NewSource(1, "N1", "source", 1, 100)
	link := NewLink(2, "N1", "link", 10)

	s := New(Params{VehicleSpeed: truckSpeed}, routeMap{1: {1, 2}})
	require.NoError(t, s.AddSegment(source))
	require.NoError(t, s.AddSegment(link))

	// Tick 0 generates, tick 1 runs the truck off its route.
	require.NoError(t, s.StepTick())
	err := s.StepTick()

	require.Error(t, err)
	assert.Equal(t, 1, s.Tick())
}
