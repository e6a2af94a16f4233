package sim

// terminator takes vehicles off the network. It is embedded by the segment
// types that act as traffic destinations.
type terminator struct {
	removedToggle bool
}

// RemovedToggle flips on every removal, giving per-tick removal visibility
// to data collectors.
func (t *terminator) RemovedToggle() bool { return t.removedToggle }

// Remove deregisters an arrived vehicle. The sink's occupancy count is not
// decremented, so it accumulates the total number of arrivals.
func (t *terminator) Remove(s *Simulation, v *Vehicle) {
	t.removedToggle = !t.removedToggle
	s.deregisterVehicle(v)
}

// SinkSegment is a network endpoint that absorbs arriving trucks.
type SinkSegment struct {
	baseSegment
	terminator
}

// NewSink creates a traffic destination.
func NewSink(id SegmentID, road, name string, length float64) *SinkSegment {
	return &SinkSegment{
		baseSegment: baseSegment{id: id, name: name, road: road, length: length},
	}
}

// SourceSinkSegment both generates trucks and absorbs arriving ones.
type SourceSinkSegment struct {
	baseSegment
	spawner
	terminator
}

// NewSourceSink creates an endpoint that acts as source and sink at once.
func NewSourceSink(id SegmentID, road, name string, length float64, interval int) *SourceSinkSegment {
	return &SourceSinkSegment{
		baseSegment: baseSegment{id: id, name: name, road: road, length: length},
		spawner:     spawner{interval: interval},
	}
}

// Step attempts truck generation on the endpoint's interval.
func (ss *SourceSinkSegment) Step(sim *Simulation) error {
	ss.stepSource(sim, ss)
	return nil
}

var (
	_ Terminator = (*SinkSegment)(nil)
	_ Terminator = (*SourceSinkSegment)(nil)
	_ Generator  = (*SourceSegment)(nil)
	_ Generator  = (*SourceSinkSegment)(nil)
)
