package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Scenario{},
	&Run{},
	&SegmentRecord{},
	&VehicleRecord{},
	&Trip{},
	&TrajectoryState{},
	&BridgeState{},
	&SimEvent{},
	&RunPerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&Scenario{},
	&Run{},
	&SegmentRecord{},
	&VehicleRecord{},
	&Trip{},
	&TrajectoryState{},
	&BridgeState{},
	&SimEvent{},
	&RunPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// RunPerformance is the model for writer and scheduler performance metrics
type RunPerformance struct {
	Time                time.Time    `json:"time" gorm:"type:timestamptz;index:idx_time"`
	RunID               uint         `json:"runId" gorm:"index:idx_runperformance_run_id"`
	Run                 Run          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	QueueLengths        QueueLengths `json:"queueLengths" gorm:"embedded;embeddedPrefix:queue_"`
	TickRate            float32      `json:"tickRate"` // simulated ticks per wall-clock second
	LastWriteDurationMs float32      `json:"lastWriteDurationMs"`
}

func (*RunPerformance) TableName() string {
	return "run_performances"
}

// QueueLengths is the model for the database write queue lengths
type QueueLengths struct {
	Segments         uint16 `json:"segments"`
	Vehicles         uint16 `json:"vehicles"`
	Trips            uint16 `json:"trips"`
	TrajectoryStates uint16 `json:"trajectoryStates"`
	BridgeStates     uint16 `json:"bridgeStates"`
	SimEvents        uint16 `json:"simEvents"`
}

////////////////////////
// REGISTRY MODELS
////////////////////////

// Scenario is the main model for a road network definition file
type Scenario struct {
	gorm.Model
	FilePath     string  `json:"filePath" gorm:"size:255"` // lookup key
	Roads        string  `json:"roads" gorm:"size:255"`    // comma-separated road names
	SegmentCount int     `json:"segmentCount"`
	TotalLengthM float64 `json:"totalLengthM"`
	Runs         []Run
}

func (*Scenario) TableName() string {
	return "scenarios"
}

func (s *Scenario) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingScenario Scenario
	err = db.Where("file_path = ?", s.FilePath).First(&existingScenario).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(s).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*s = existingScenario
	return false, nil
}

// Run is the main model for one simulation execution
type Run struct {
	gorm.Model
	UID                   string         `json:"uid" gorm:"size:36;index:idx_run_uid"`
	ScenarioID            uint
	Scenario              Scenario       `gorm:"foreignkey:ScenarioID"`
	StartTime             time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_run_start"`
	EndTime               time.Time      `json:"endTime" gorm:"type:timestamptz"`
	Seed                  int64          `json:"seed"`
	Ticks                 int            `json:"ticks"`          // planned run length in minutes
	CompletedTicks        int            `json:"completedTicks"` // filled in at run end
	VehicleSpeed          float64        `json:"vehicleSpeed"`   // meters per minute
	GenerationInterval    int            `json:"generationInterval"`
	DeteriorationInterval int            `json:"deteriorationInterval"`
	CollapseProbabilities datatypes.JSON `json:"collapseProbabilities"` // per condition grade
	AppVersion            string         `json:"appVersion" gorm:"size:64;default:1.0.0"`

	Segments         []SegmentRecord
	Vehicles         []VehicleRecord
	Trips            []Trip
	TrajectoryStates []TrajectoryState
	BridgeStates     []BridgeState
	SimEvents        []SimEvent
}

func (*Run) TableName() string {
	return "runs"
}

// SegmentRecord is the model for one road network element of a run
type SegmentRecord struct {
	ID    uint `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID uint `json:"runId" gorm:"index:idx_segment_run_id"`
	Run   Run  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`

	SegmentID int        `json:"segmentId" gorm:"index:idx_segment_segment_id"` // scenario id
	Road      string     `json:"road" gorm:"size:16"`
	Type      string     `json:"type" gorm:"size:16"` // source, sink, sourcesink, bridge or link
	Name      string     `json:"name" gorm:"size:127"`
	Condition string     `json:"condition" gorm:"size:2"` // bridges only
	LengthM   float64    `json:"lengthM"`
	ChainageM float64    `json:"chainageM"` // distance from road start to segment start
	Location  geom.Point `json:"location"`  // EPSG:3857
}

func (*SegmentRecord) TableName() string {
	return "segments"
}

// VehicleRecord is the model for one generated truck
type VehicleRecord struct {
	ID    uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time  time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID uint      `json:"runId" gorm:"index:idx_vehicle_run_id"`
	Run   Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`

	Name          string `json:"name" gorm:"size:32;index:idx_vehicle_name"`
	OriginID      int    `json:"originId"` // scenario id of the spawning segment
	GeneratedTick uint   `json:"generatedTick"`
}

func (*VehicleRecord) TableName() string {
	return "vehicles"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Trip is the model for one completed journey
// References VehicleRecord by (RunID, VehicleName) composite FK
type Trip struct {
	ID          uint          `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time     `json:"time" gorm:"type:timestamptz;"`
	RunID       uint          `json:"runId" gorm:"index:idx_trip_run_id"`
	Run         Run           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	VehicleName string        `json:"vehicleName" gorm:"size:32;index:idx_trip_vehicle_name"`
	Vehicle     VehicleRecord `gorm:"foreignkey:RunID,VehicleName;references:RunID,Name;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	DestinationID int  `json:"destinationId"` // scenario id of the removing sink
	GeneratedTick uint `json:"generatedTick"`
	RemovedTick   uint `json:"removedTick"`
	TravelTimeMin int  `json:"travelTimeMin"`
}

func (*Trip) TableName() string {
	return "trips"
}

// TrajectoryState tracks truck position at a point in time
// References VehicleRecord by (RunID, VehicleName) composite FK
type TrajectoryState struct {
	ID          uint          `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time     `json:"time" gorm:"type:timestamptz;"`
	RunID       uint          `json:"runId" gorm:"index:idx_trajectorystate_run_id"`
	Run         Run           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Tick        uint          `json:"tick" gorm:"index:idx_trajectorystate_tick"`
	VehicleName string        `json:"vehicleName" gorm:"size:32;index:idx_trajectorystate_vehicle_name"`
	Vehicle     VehicleRecord `gorm:"foreignkey:RunID,VehicleName;references:RunID,Name;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	SegmentID      int        `json:"segmentId"`
	OffsetM        float64    `json:"offsetM"`                   // distance along the segment
	State          string     `json:"state" gorm:"size:8"`       // DRIVE or WAIT
	WaitingTimeMin float64    `json:"waitingTimeMin"`            // remaining wait, WAIT only
	Position       geom.Point `json:"position"`                  // interpolated along road geometry, EPSG:3857
}

func (*TrajectoryState) TableName() string {
	return "trajectory_states"
}

// Transition values recorded on BridgeState rows.
const (
	TransitionCollapsed     = "collapsed"
	TransitionDeteriorated  = "deteriorated"
	TransitionRepairStarted = "repair.started"
	TransitionRepaired      = "repaired"
)

// BridgeState tracks a bridge condition transition
type BridgeState struct {
	ID    uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time  time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID uint      `json:"runId" gorm:"index:idx_bridgestate_run_id"`
	Run   Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Tick  uint      `json:"tick" gorm:"index:idx_bridgestate_tick"`

	SegmentID  int     `json:"segmentId" gorm:"index:idx_bridgestate_segment_id"`
	Name       string  `json:"name" gorm:"size:127"`
	Condition  string  `json:"condition" gorm:"size:2"`
	InRepair   bool    `json:"inRepair"`
	DelayMin   float64 `json:"delayMin"`                  // wait imposed on arriving trucks
	Transition string  `json:"transition" gorm:"size:32"` // collapsed, repair.started, repaired or deteriorated
}

func (*BridgeState) TableName() string {
	return "bridge_states"
}

// SimEvent is the model for a raw event payload kept for offline analysis
type SimEvent struct {
	ID    uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time  time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID uint      `json:"runId" gorm:"index:idx_simevent_run_id"`
	Run   Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Tick  uint      `json:"tick"`

	Name    string         `json:"name" gorm:"size:64;index:idx_simevent_name"`
	Payload datatypes.JSON `json:"payload"`
}

func (*SimEvent) TableName() string {
	return "sim_events"
}
