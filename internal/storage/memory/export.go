// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
)

// RunExport is the root JSON structure
type RunExport struct {
	AppVersion         string        `json:"appVersion"`
	RunUID             string        `json:"runId"`
	ScenarioFile       string        `json:"scenarioFile"`
	Seed               int64         `json:"seed"`
	Ticks              int           `json:"ticks"`
	CompletedTicks     int           `json:"completedTicks"`
	VehicleSpeed       float64       `json:"vehicleSpeed"`
	GenerationInterval int           `json:"generationInterval"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            time.Time     `json:"endTime"`
	Segments           []SegmentJSON `json:"segments"`
	Vehicles           []VehicleJSON `json:"vehicles"`
	Trips              [][]any       `json:"trips"`
	BridgeStates       [][]any       `json:"bridgeStates"`
	Events             [][]any       `json:"events"`
}

// SegmentJSON describes one scenario segment
type SegmentJSON struct {
	ID        int     `json:"id"`
	Road      string  `json:"road"`
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Condition string  `json:"condition,omitempty"`
	LengthM   float64 `json:"lengthM"`
	ChainageM float64 `json:"chainageM"`
}

// VehicleJSON represents a truck and its recorded positions
type VehicleJSON struct {
	Name          string  `json:"name"`
	OriginID      int     `json:"originId"`
	GeneratedTick uint    `json:"generatedTick"`
	Positions     [][]any `json:"positions"`
}

// exportJSON writes the run data to a JSON file, gzipped when configured
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename from the scenario file name and the run start time
	base := "run"
	if b.scenario != nil && b.scenario.FilePath != "" {
		base = strings.TrimSuffix(filepath.Base(b.scenario.FilePath), filepath.Ext(b.scenario.FilePath))
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.ReplaceAll(base, ":", "_")
	timestamp := b.run.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", base, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", base, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

// GetExportedFilePath returns the path of the last export, empty if none
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) buildExport() RunExport {
	export := RunExport{
		AppVersion:         b.run.AppVersion,
		RunUID:             b.run.UID,
		Seed:               b.run.Seed,
		Ticks:              b.run.Ticks,
		CompletedTicks:     b.run.CompletedTicks,
		VehicleSpeed:       b.run.VehicleSpeed,
		GenerationInterval: b.run.GenerationInterval,
		StartTime:          b.run.StartTime,
		EndTime:            b.run.EndTime,
		Segments:           make([]SegmentJSON, 0, len(b.segments)),
		Vehicles:           make([]VehicleJSON, 0, len(b.vehicles)),
		Trips:              make([][]any, 0, len(b.trips)),
		BridgeStates:       make([][]any, 0),
		Events:             make([][]any, 0, len(b.events)),
	}
	if b.scenario != nil {
		export.ScenarioFile = b.scenario.FilePath
	}

	// Segments in file order
	for _, seg := range b.segments {
		export.Segments = append(export.Segments, SegmentJSON{
			ID:        seg.SegmentID,
			Road:      seg.Road,
			Type:      seg.Type,
			Name:      seg.Name,
			Condition: seg.Condition,
			LengthM:   seg.LengthM,
			ChainageM: seg.ChainageM,
		})
	}

	// Vehicles in generation order
	names := make([]string, 0, len(b.vehicles))
	for name := range b.vehicles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		vi := b.vehicles[names[i]].Vehicle
		vj := b.vehicles[names[j]].Vehicle
		if vi.GeneratedTick != vj.GeneratedTick {
			return vi.GeneratedTick < vj.GeneratedTick
		}
		return vi.Name < vj.Name
	})

	for _, name := range names {
		trace := b.vehicles[name]
		entity := VehicleJSON{
			Name:          trace.Vehicle.Name,
			OriginID:      trace.Vehicle.OriginID,
			GeneratedTick: trace.Vehicle.GeneratedTick,
			Positions:     make([][]any, 0, len(trace.States)),
		}

		// Format: [tick, segmentId, offsetM, [x, y], state, waitingTimeMin]
		for _, state := range trace.States {
			pos := []any{
				state.Tick,
				state.SegmentID,
				state.OffsetM,
				positionXY(state.Position),
				state.State,
				state.WaitingTimeMin,
			}
			entity.Positions = append(entity.Positions, pos)
		}

		export.Vehicles = append(export.Vehicles, entity)
	}

	// Convert trips
	// Format: [vehicleName, destinationId, generatedTick, removedTick, travelTimeMin]
	for _, trip := range b.trips {
		export.Trips = append(export.Trips, []any{
			trip.VehicleName,
			trip.DestinationID,
			trip.GeneratedTick,
			trip.RemovedTick,
			trip.TravelTimeMin,
		})
	}

	// Convert bridge states, grouped per bridge in segment id order
	// Format: [tick, segmentId, condition, inRepair, delayMin, transition]
	ids := make([]int, 0, len(b.bridges))
	for id := range b.bridges {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		for _, state := range b.bridges[id].States {
			export.BridgeStates = append(export.BridgeStates, []any{
				state.Tick,
				state.SegmentID,
				state.Condition,
				boolToInt(state.InRepair),
				state.DelayMin,
				state.Transition,
			})
		}
	}

	// Convert events
	// Format: [tick, name, payload]
	for _, evt := range b.events {
		row := []any{evt.Tick, evt.Name}
		if len(evt.Payload) > 0 {
			row = append(row, json.RawMessage(evt.Payload))
		}
		export.Events = append(export.Events, row)
	}

	return export
}

// positionXY flattens a projected point to [x, y], nil when empty
func positionXY(p geom.Point) []float64 {
	coords, ok := p.Coordinates()
	if !ok {
		return nil
	}
	return []float64{coords.X, coords.Y}
}

func (b *Backend) writeJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
