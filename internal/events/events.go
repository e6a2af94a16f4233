// Package events defines the typed event stream emitted by a simulation run
// and the Bus that fans events out to subscribers.
package events

// Event names, used to key subscriptions on the Bus.
const (
	NameVehicleGenerated    = "vehicle.generated"
	NameVehicleMoved        = "vehicle.moved"
	NameVehicleRemoved      = "vehicle.removed"
	NameGenerationSkipped   = "vehicle.generation.skipped"
	NameBridgeCollapsed     = "bridge.collapsed"
	NameBridgeDeteriorated  = "bridge.deteriorated"
	NameBridgeRepairStarted = "bridge.repair.started"
	NameBridgeRepaired      = "bridge.repaired"
	NameTickCompleted       = "tick.completed"
)

// Event is implemented by every simulation event type.
type Event interface {
	Name() string
}

// Publisher accepts simulation events. The Bus implements it; callers that
// do not care about events can leave their publisher nil.
type Publisher interface {
	Publish(e Event)
}

// VehicleGenerated is emitted when a source puts a new truck on the network.
type VehicleGenerated struct {
	Tick       int    `json:"tick"`
	Vehicle    string `json:"vehicle"`
	Origin     int    `json:"origin"`
	OriginName string `json:"originName"`
}

func (VehicleGenerated) Name() string { return NameVehicleGenerated }

// VehicleMoved is emitted after each vehicle activation and carries the
// post-step position.
type VehicleMoved struct {
	Tick        int     `json:"tick"`
	Vehicle     string  `json:"vehicle"`
	Segment     int     `json:"segment"`
	SegmentName string  `json:"segmentName"`
	Offset      float64 `json:"offset"`
	State       string  `json:"state"`
	WaitingTime float64 `json:"waitingTime"`
}

func (VehicleMoved) Name() string { return NameVehicleMoved }

// VehicleRemoved is emitted when a truck reaches a sink and leaves the
// network. TravelTime is in ticks.
type VehicleRemoved struct {
	Tick       int    `json:"tick"`
	Vehicle    string `json:"vehicle"`
	Sink       int    `json:"sink"`
	SinkName   string `json:"sinkName"`
	TravelTime int    `json:"travelTime"`
}

func (VehicleRemoved) Name() string { return NameVehicleRemoved }

// GenerationSkipped is emitted when a source hits its generation tick but
// cannot spawn a truck, for example because no route leaves the origin.
type GenerationSkipped struct {
	Tick       int    `json:"tick"`
	Origin     int    `json:"origin"`
	OriginName string `json:"originName"`
	Reason     string `json:"reason"`
}

func (GenerationSkipped) Name() string { return NameGenerationSkipped }

// BridgeCollapsed is emitted when a bridge transitions into the collapsed
// condition. Re-rolls while already collapsed do not emit again.
type BridgeCollapsed struct {
	Tick       int    `json:"tick"`
	Bridge     int    `json:"bridge"`
	BridgeName string `json:"bridgeName"`
	Road       string `json:"road"`
}

func (BridgeCollapsed) Name() string { return NameBridgeCollapsed }

// BridgeDeteriorated is emitted when a scheduled deterioration pass moves a
// bridge one condition grade down without collapsing it. A pass that pushes a
// bridge into the collapsed grade emits BridgeCollapsed instead.
type BridgeDeteriorated struct {
	Tick       int    `json:"tick"`
	Bridge     int    `json:"bridge"`
	BridgeName string `json:"bridgeName"`
	Road       string `json:"road"`
	Condition  string `json:"condition"`
}

func (BridgeDeteriorated) Name() string { return NameBridgeDeteriorated }

// BridgeRepairStarted is emitted when a collapsed bridge begins its repair
// countdown. Delay is the traffic delay in minutes drawn for this episode.
type BridgeRepairStarted struct {
	Tick       int     `json:"tick"`
	Bridge     int     `json:"bridge"`
	BridgeName string  `json:"bridgeName"`
	Road       string  `json:"road"`
	Delay      float64 `json:"delay"`
}

func (BridgeRepairStarted) Name() string { return NameBridgeRepairStarted }

// BridgeRepaired is emitted when a repair countdown completes and the bridge
// returns to service.
type BridgeRepaired struct {
	Tick       int    `json:"tick"`
	Bridge     int    `json:"bridge"`
	BridgeName string `json:"bridgeName"`
	Road       string `json:"road"`
}

func (BridgeRepaired) Name() string { return NameBridgeRepaired }

// TickCompleted is emitted once per simulation tick after all entities have
// been activated.
type TickCompleted struct {
	Tick             int     `json:"tick"`
	ActiveVehicles   int     `json:"activeVehicles"`
	WaitingVehicles  int     `json:"waitingVehicles"`
	Generated        int     `json:"generated"`
	Removed          int     `json:"removed"`
	CollapsedBridges int     `json:"collapsedBridges"`
	BridgesInRepair  int     `json:"bridgesInRepair"`
	AverageTripTime  float64 `json:"averageTripTime"`
}

func (TickCompleted) Name() string { return NameTickCompleted }
