package sim

import (
	"fmt"

	"github.com/iti/rngstream"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/events"
)

// repairTicks is how long a collapsed bridge stays under repair: one full
// day of one-minute ticks.
const repairTicks = 24 * 60

// DelayBands holds the length thresholds, in meters, that select which delay
// distribution a collapsed bridge imposes on traffic.
type DelayBands struct {
	Short  float64
	Medium float64
	Long   float64
}

// DefaultDelayBands classifies bridges the way the BMMS road records do:
// over 200 m is long, over 50 m is medium, over 10 m is short.
var DefaultDelayBands = DelayBands{Short: 10, Medium: 50, Long: 200}

// BridgeSegment is a bridge that can collapse based on its condition grade
// and then undergoes a repair downtime during which crossing traffic waits.
type BridgeSegment struct {
	baseSegment

	condition    Condition
	collapseProb float64
	inRepair     bool
	repairLeft   int
	delay        float64
	bands        DelayBands
	rng          *rngstream.RngStream
}

// NewBridge creates a bridge segment. The collapse probability is resolved
// from the initial condition once and keeps applying for the whole run, also
// after repairs restore the condition grade.
func NewBridge(id SegmentID, road, name string, length float64, condition Condition, probabilities map[Condition]float64, bands DelayBands, rng *rngstream.RngStream) (*BridgeSegment, error) {
	prob, ok := probabilities[condition]
	if !ok {
		return nil, fmt.Errorf("bridge %d (%s): %w %s", id, name, ErrNoCollapseProbability, condition)
	}

	return &BridgeSegment{
		baseSegment:  baseSegment{id: id, name: name, road: road, length: length},
		condition:    condition,
		collapseProb: prob,
		repairLeft:   repairTicks,
		bands:        bands,
		rng:          rng,
	}, nil
}

// Condition returns the current condition grade.
func (b *BridgeSegment) Condition() Condition { return b.condition }

// InRepair reports whether a repair countdown is running.
func (b *BridgeSegment) InRepair() bool { return b.inRepair }

// RepairCountdown returns the remaining repair ticks.
func (b *BridgeSegment) RepairCountdown() int { return b.repairLeft }

// CollapseProbability returns the per-tick collapse probability fixed at
// construction.
func (b *BridgeSegment) CollapseProbability() float64 { return b.collapseProb }

// Delay returns the traffic delay in minutes drawn for the current collapse
// episode, or 0 when the bridge is passable.
func (b *BridgeSegment) Delay() float64 { return b.delay }

// Step rolls for collapse, then advances the repair state machine.
func (b *BridgeSegment) Step(s *Simulation) error {
	b.rollCollapse(s)
	b.checkRepair(s)
	return nil
}

func (b *BridgeSegment) rollCollapse(s *Simulation) {
	if b.rng.RandU01() < b.collapseProb {
		if !b.condition.Collapsed() {
			s.publish(events.BridgeCollapsed{
				Tick:       s.Tick(),
				Bridge:     int(b.id),
				BridgeName: b.name,
				Road:       b.road,
			})
		}
		b.condition = ConditionX
	}
}

func (b *BridgeSegment) checkRepair(s *Simulation) {
	switch {
	case !b.inRepair && b.condition.Collapsed():
		b.inRepair = true
		b.delay = b.drawDelay()
		s.publish(events.BridgeRepairStarted{
			Tick:       s.Tick(),
			Bridge:     int(b.id),
			BridgeName: b.name,
			Road:       b.road,
			Delay:      b.delay,
		})
	case b.inRepair:
		if b.repairLeft == 0 {
			b.condition = ConditionA
			b.delay = 0
			b.inRepair = false
			b.repairLeft = repairTicks
			s.publish(events.BridgeRepaired{
				Tick:       s.Tick(),
				Bridge:     int(b.id),
				BridgeName: b.name,
				Road:       b.road,
			})
		} else {
			b.repairLeft--
		}
	}
}

// drawDelay samples the repair delay for one collapse episode. Longer
// bridges block traffic for longer.
func (b *BridgeSegment) drawDelay() float64 {
	switch {
	case b.length > b.bands.Long:
		return Triangular(b.rng, 60, 240, 120)
	case b.length > b.bands.Medium:
		return Uniform(b.rng, 45, 90)
	case b.length > b.bands.Short:
		return Uniform(b.rng, 15, 60)
	default:
		return Uniform(b.rng, 10, 20)
	}
}

// Deteriorate moves the bridge one condition grade down. It does not touch
// the collapse probability, which stays bound to the construction grade.
func (b *BridgeSegment) Deteriorate() {
	b.condition = b.condition.Next()
}
