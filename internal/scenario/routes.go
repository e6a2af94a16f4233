package scenario

import (
	"fmt"

	"github.com/iti/rngstream"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/sim"
)

// RouteTable maps each generating segment to its candidate routes. It
// implements sim.RouteProvider.
type RouteTable struct {
	candidates map[sim.SegmentID][][]sim.SegmentID
	rng        *rngstream.RngStream
}

var _ sim.RouteProvider = (*RouteTable)(nil)

// NewRouteTable builds a route table over the given candidates. The RNG
// stream is consulted only when an origin has more than one candidate.
func NewRouteTable(candidates map[sim.SegmentID][][]sim.SegmentID, rng *rngstream.RngStream) *RouteTable {
	return &RouteTable{candidates: candidates, rng: rng}
}

// Route returns a route starting at origin, picking uniformly when several
// are available.
func (t *RouteTable) Route(origin sim.SegmentID) ([]sim.SegmentID, error) {
	routes := t.candidates[origin]
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: segment %d", sim.ErrNoRoute, origin)
	}
	if len(routes) == 1 {
		return routes[0], nil
	}
	pick := int(t.rng.RandU01() * float64(len(routes)))
	if pick >= len(routes) {
		pick = len(routes) - 1
	}
	return routes[pick], nil
}

// Routes derives the candidate table from the scenario: one route per
// generating element, running down its road to the first terminating
// element. Generators with no terminator downstream get no route and fail
// at generation time instead of load time.
func (sc *Scenario) Routes() map[sim.SegmentID][][]sim.SegmentID {
	table := make(map[sim.SegmentID][][]sim.SegmentID)
	for _, road := range sc.Roads {
		for i, el := range road.Elements {
			if el.Type != TypeSource && el.Type != TypeSourceSink {
				continue
			}
			if route := routeFrom(road, i); route != nil {
				table[el.ID] = append(table[el.ID], route)
			}
		}
	}
	return table
}

func routeFrom(road *Road, start int) []sim.SegmentID {
	route := []sim.SegmentID{road.Elements[start].ID}
	for j := start + 1; j < len(road.Elements); j++ {
		el := road.Elements[j]
		route = append(route, el.ID)
		if el.Type == TypeSink || el.Type == TypeSourceSink {
			return route
		}
	}
	return nil
}
