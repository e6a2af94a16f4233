package sim

import (
	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
)

// spawner generates trucks on a fixed tick interval. It is embedded by the
// segment types that act as traffic origins.
type spawner struct {
	interval  int
	generated bool
}

// GeneratedThisTick reports whether the last activation spawned a truck.
func (sp *spawner) GeneratedThisTick() bool { return sp.generated }

func (sp *spawner) stepSource(s *Simulation, host Segment) {
	if s.Tick()%sp.interval == 0 {
		sp.generated = sp.generate(s, host)
	} else {
		sp.generated = false
	}
}

// generate resolves a route first and only then consumes a truck number, so
// a failed spawn never burns an id or leaves a half-registered vehicle.
func (sp *spawner) generate(s *Simulation, host Segment) bool {
	route, err := s.routes.Route(host.ID())
	if err != nil {
		s.log.Warn().Err(err).Str("origin", host.Name()).Int("tick", s.Tick()).Msg("Truck generation skipped")
		s.publish(events.GenerationSkipped{
			Tick:       s.Tick(),
			Origin:     int(host.ID()),
			OriginName: host.Name(),
			Reason:     err.Error(),
		})
		return false
	}

	v := NewVehicle(s.nextTruckName(), s.params.VehicleSpeed, host, route, s.Tick())
	host.addVehicle()
	s.registerVehicle(v)

	s.publish(events.VehicleGenerated{
		Tick:       s.Tick(),
		Vehicle:    v.Name(),
		Origin:     int(host.ID()),
		OriginName: host.Name(),
	})
	return true
}

// SourceSegment is a network endpoint that generates trucks.
type SourceSegment struct {
	baseSegment
	spawner
}

// NewSource creates a traffic origin that spawns a truck every interval
// ticks.
func NewSource(id SegmentID, road, name string, length float64, interval int) *SourceSegment {
	return &SourceSegment{
		baseSegment: baseSegment{id: id, name: name, road: road, length: length},
		spawner:     spawner{interval: interval},
	}
}

// Step attempts truck generation on the source's interval.
func (s *SourceSegment) Step(sim *Simulation) error {
	s.stepSource(sim, s)
	return nil
}
