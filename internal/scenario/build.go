package scenario

import (
	"fmt"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/sim"
)

// BuildParams configure the simulation entities built from a scenario.
type BuildParams struct {
	Sim                sim.Params
	GenerationInterval int
	Probabilities      map[sim.Condition]float64
	Bands              sim.DelayBands
	Seed               int64
}

// Build constructs a simulation with one entity per scenario element,
// registered in file order. RNG streams are created in a fixed order, the
// route stream first and then one per bridge in file order, so runs with
// the same scenario and seed see the same realization.
func Build(sc *Scenario, p BuildParams, opts ...sim.Option) (*sim.Simulation, error) {
	if p.GenerationInterval < 1 {
		return nil, fmt.Errorf("generation interval must be positive, got %d", p.GenerationInterval)
	}
	if p.Bands == (sim.DelayBands{}) {
		p.Bands = sim.DefaultDelayBands
	}

	routes := NewRouteTable(sc.Routes(), sim.NewStream("routes", p.Seed))
	s := sim.New(p.Sim, routes, opts...)

	for _, el := range sc.Elements {
		var seg sim.Segment
		switch el.Type {
		case TypeSource:
			seg = sim.NewSource(el.ID, el.Road, el.Name, el.LengthM, p.GenerationInterval)
		case TypeSink:
			seg = sim.NewSink(el.ID, el.Road, el.Name, el.LengthM)
		case TypeSourceSink:
			seg = sim.NewSourceSink(el.ID, el.Road, el.Name, el.LengthM, p.GenerationInterval)
		case TypeBridge:
			rng := sim.NewStream(fmt.Sprintf("bridge-%d", el.ID), p.Seed)
			bridge, err := sim.NewBridge(el.ID, el.Road, el.Name, el.LengthM, el.Condition, p.Probabilities, p.Bands, rng)
			if err != nil {
				return nil, err
			}
			seg = bridge
		case TypeLink:
			seg = sim.NewLink(el.ID, el.Road, el.Name, el.LengthM)
		}
		if err := s.AddSegment(seg); err != nil {
			return nil, err
		}
	}
	return s, nil
}
