package sim

// SegmentID identifies a piece of road infrastructure within one scenario.
type SegmentID int

// Segment is any piece of road infrastructure a vehicle can occupy: a plain
// link, a bridge, or an endpoint that generates or absorbs traffic.
type Segment interface {
	ID() SegmentID
	Name() string
	Road() string
	Length() float64
	Occupancy() int

	addVehicle()
	removeVehicle()
}

// Entity is anything the simulation activates once per tick.
type Entity interface {
	Step(s *Simulation) error
}

// Terminator is a segment that takes vehicles off the network when they
// reach it.
type Terminator interface {
	Segment
	Remove(s *Simulation, v *Vehicle)
}

// Generator is a segment that puts new vehicles on the network.
type Generator interface {
	Segment
	GeneratedThisTick() bool
}

type baseSegment struct {
	id        SegmentID
	name      string
	road      string
	length    float64
	occupancy int
}

func (b *baseSegment) ID() SegmentID   { return b.id }
func (b *baseSegment) Name() string    { return b.name }
func (b *baseSegment) Road() string    { return b.road }
func (b *baseSegment) Length() float64 { return b.length }

// Occupancy returns the number of vehicles currently booked onto the
// segment. Sinks never release arrivals, so their count accumulates over the
// run.
func (b *baseSegment) Occupancy() int { return b.occupancy }

func (b *baseSegment) addVehicle()    { b.occupancy++ }
func (b *baseSegment) removeVehicle() { b.occupancy-- }

// Step is a no-op for infrastructure without behavior of its own.
func (b *baseSegment) Step(s *Simulation) error { return nil }

// LinkSegment is a plain stretch of road.
type LinkSegment struct {
	baseSegment
}

// NewLink creates a plain road segment.
func NewLink(id SegmentID, road, name string, length float64) *LinkSegment {
	return &LinkSegment{baseSegment{id: id, name: name, road: road, length: length}}
}
