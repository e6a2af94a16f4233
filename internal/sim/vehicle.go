package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
)

// stepMinutes is how many minutes one tick represents.
const stepMinutes = 1.0

// TravelState is the activity a vehicle performs during a tick.
type TravelState string

const (
	StateDriving TravelState = "DRIVE"
	StateWaiting TravelState = "WAIT"
)

// Vehicle is a truck traversing a fixed route at constant speed. It drives
// its per-tick distance across as many segments as that distance covers,
// waits out bridge repair delays, and leaves the network at a sink.
type Vehicle struct {
	name        string
	speed       float64
	generatedAt int
	removedAt   int
	location    Segment
	offset      float64
	route       []SegmentID
	cursor      int
	state       TravelState
	waitingTime float64
	waitedAt    Segment
	nextBridge  string
}

// NewVehicle creates a truck at the given origin. Speed is in meters per
// minute. The route must start with the origin's own id.
func NewVehicle(name string, speed float64, origin Segment, route []SegmentID, tick int) *Vehicle {
	return &Vehicle{
		name:        name,
		speed:       speed,
		generatedAt: tick,
		removedAt:   -1,
		location:    origin,
		route:       route,
		state:       StateDriving,
	}
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("%s +%d -%d %s(%g) %s(%d) %g",
		v.name, v.generatedAt, v.removedAt, v.state, v.waitingTime,
		v.location.Name(), v.location.Occupancy(), v.offset)
}

// Name returns the truck's unique name.
func (v *Vehicle) Name() string { return v.name }

// Location returns the segment the vehicle currently occupies.
func (v *Vehicle) Location() Segment { return v.location }

// Offset returns the position along the current segment in meters.
func (v *Vehicle) Offset() float64 { return v.offset }

// State returns the current travel state.
func (v *Vehicle) State() TravelState { return v.state }

// WaitingTime returns the remaining wait in ticks.
func (v *Vehicle) WaitingTime() float64 { return v.waitingTime }

// WaitedAt returns the segment where the vehicle last finished waiting, or
// nil if it never waited.
func (v *Vehicle) WaitedAt() Segment { return v.waitedAt }

// NextBridge returns the name of the last bridge the vehicle inspected while
// driving, or "" before it has approached one.
func (v *Vehicle) NextBridge() string { return v.nextBridge }

// GeneratedAt returns the tick the vehicle entered the network.
func (v *Vehicle) GeneratedAt() int { return v.generatedAt }

// RemovedAt returns the tick the vehicle reached a sink, or -1 while it is
// still driving.
func (v *Vehicle) RemovedAt() int { return v.removedAt }

// TripTime returns the travel time in ticks, or -1 while the trip is still
// in progress.
func (v *Vehicle) TripTime() int {
	if v.removedAt < 0 {
		return -1
	}
	return v.removedAt - v.generatedAt
}

// Route returns the vehicle's route and its current position in it.
func (v *Vehicle) Route() ([]SegmentID, int) {
	return v.route, v.cursor
}

// Step counts down a running wait and then drives. A wait that reaches zero
// releases the vehicle in the same tick, so it loses no driving time beyond
// the delay itself.
func (v *Vehicle) Step(s *Simulation) error {
	if v.state == StateWaiting {
		v.waitingTime = math.Max(v.waitingTime-1, 0)
		if v.waitingTime == 0 {
			v.waitedAt = v.location
			v.state = StateDriving
		}
	}

	if v.state == StateDriving {
		if err := v.drive(s); err != nil {
			return err
		}
	}

	if v.removedAt != s.Tick() {
		s.publish(events.VehicleMoved{
			Tick:        s.Tick(),
			Vehicle:     v.name,
			Segment:     int(v.location.ID()),
			SegmentName: v.location.Name(),
			Offset:      v.offset,
			State:       string(v.state),
			WaitingTime: v.waitingTime,
		})
	}
	return nil
}

func (v *Vehicle) drive(s *Simulation) error {
	distance := v.speed * stepMinutes
	rest := v.offset + distance - v.location.Length()

	if rest > 0 {
		return v.driveToNext(s, rest)
	}
	v.offset += distance
	return nil
}

// driveToNext advances the vehicle along its route by the given remaining
// distance. Each iteration consumes one route entry, so the walk is bounded
// by the route length.
func (v *Vehicle) driveToNext(s *Simulation, distance float64) error {
	for {
		v.cursor++
		if v.cursor >= len(v.route) {
			return fmt.Errorf("%s on %q: %w", v.name, v.location.Name(), ErrRouteExhausted)
		}
		next, err := s.Segment(v.route[v.cursor])
		if err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}

		if sink, ok := next.(Terminator); ok {
			v.arriveAt(next, 0)
			v.removedAt = s.Tick()
			s.recordTrip(v)
			sink.Remove(s, v)
			return nil
		}

		if bridge, ok := next.(*BridgeSegment); ok {
			v.nextBridge = bridge.Name()
			// Dual bridges carry one-way traffic per span. The right span
			// is skipped: the cursor stays advanced past it and the vehicle
			// continues from its current position next tick.
			if strings.HasSuffix(v.nextBridge, "(R") {
				return nil
			}

			v.waitingTime = bridge.Delay()
			if v.waitingTime > 0 {
				v.arriveAt(next, 0)
				v.state = StateWaiting
				return nil
			}
		}

		if next.Length() > distance {
			v.arriveAt(next, distance)
			return nil
		}
		distance -= next.Length()
	}
}

// arriveAt books the vehicle from its current segment onto the next one.
func (v *Vehicle) arriveAt(next Segment, offset float64) {
	v.location.removeVehicle()
	v.location = next
	v.offset = offset
	next.addVehicle()
}
