// Package scenario loads road network definition files and builds the
// simulation entities they describe. A scenario file is a CSV with one row
// per infrastructure element, ordered by travel direction within each road.
package scenario

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mlmoleman/EPA133a-G07-A2/internal/geo"
	"github.com/mlmoleman/EPA133a-G07-A2/internal/sim"
)

// Element model types as they appear in the model_type column.
const (
	TypeSource     = "source"
	TypeSink       = "sink"
	TypeSourceSink = "sourcesink"
	TypeBridge     = "bridge"
	TypeLink       = "link"
)

var (
	// ErrMissingColumn is returned when a required CSV column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrUnknownModelType is returned for a model_type outside the known set.
	ErrUnknownModelType = errors.New("unknown model type")

	// ErrDuplicateID is returned when two rows carry the same id.
	ErrDuplicateID = errors.New("duplicate segment id")

	// ErrEmptyScenario is returned when the file has no data rows.
	ErrEmptyScenario = errors.New("scenario has no rows")
)

var requiredColumns = []string{"road", "id", "model_type", "name", "lat", "lon", "length"}

// Element is one row of a scenario file.
type Element struct {
	ID        sim.SegmentID
	Road      string
	Type      string
	Name      string
	Lat       float64
	Lon       float64
	LengthM   float64
	Condition sim.Condition // bridges only, defaults to A
	Point     geom.Point    // EPSG:3857
	ChainageM float64       // road distance before this element
}

// Road groups the elements of one road in travel order.
type Road struct {
	Name         string
	Elements     []*Element
	TotalLengthM float64

	// Projected road polyline through the element points. Only set when the
	// road has at least two elements.
	Line      geom.LineString
	hasLine   bool
	lineDists []float64 // projected distance from road start to each vertex
}

// Scenario is a loaded road network definition.
type Scenario struct {
	FilePath string
	Roads    []*Road    // encounter order
	Elements []*Element // file order

	roadsByName map[string]*Road
	position    map[sim.SegmentID]elementPos
}

type elementPos struct {
	road  *Road
	index int
}

// Load reads a scenario file from disk.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario file: %w", err)
	}
	defer f.Close()

	sc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.FilePath = path
	return sc, nil
}

// Parse reads scenario rows from r. The header row names the columns; the
// condition column is optional and only read for bridges.
func Parse(r io.Reader) (*Scenario, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	conditionCol, hasCondition := idx["condition"]

	sc := &Scenario{
		roadsByName: make(map[string]*Road),
		position:    make(map[sim.SegmentID]elementPos),
	}
	seen := make(map[sim.SegmentID]int)

	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum+1, err)
		}
		rowNum++

		el, err := parseRow(record, idx, conditionCol, hasCondition)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if prev, dup := seen[el.ID]; dup {
			return nil, fmt.Errorf("row %d: %w: %d already used on row %d", rowNum, ErrDuplicateID, el.ID, prev)
		}
		seen[el.ID] = rowNum

		road, ok := sc.roadsByName[el.Road]
		if !ok {
			road = &Road{Name: el.Road}
			sc.roadsByName[el.Road] = road
			sc.Roads = append(sc.Roads, road)
		}
		el.ChainageM = road.TotalLengthM
		road.TotalLengthM += el.LengthM

		sc.position[el.ID] = elementPos{road: road, index: len(road.Elements)}
		road.Elements = append(road.Elements, el)
		sc.Elements = append(sc.Elements, el)
	}

	if len(sc.Elements) == 0 {
		return nil, ErrEmptyScenario
	}

	for _, road := range sc.Roads {
		buildRoadLine(road)
	}
	return sc, nil
}

func parseRow(record []string, idx map[string]int, conditionCol int, hasCondition bool) (*Element, error) {
	get := func(col string) string {
		return strings.TrimSpace(record[idx[col]])
	}

	id, err := strconv.Atoi(get("id"))
	if err != nil {
		return nil, fmt.Errorf("bad id %q: %w", get("id"), err)
	}

	modelType := strings.ToLower(get("model_type"))
	switch modelType {
	case TypeSource, TypeSink, TypeSourceSink, TypeBridge, TypeLink:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, modelType)
	}

	length, err := strconv.ParseFloat(get("length"), 64)
	if err != nil {
		return nil, fmt.Errorf("bad length %q: %w", get("length"), err)
	}
	if length < 0 {
		return nil, fmt.Errorf("negative length %v", length)
	}

	point, err := geo.ParseLatLon(get("lat"), get("lon"))
	if err != nil {
		return nil, fmt.Errorf("lat %q lon %q: %w", get("lat"), get("lon"), err)
	}
	lat, _ := strconv.ParseFloat(get("lat"), 64)
	lon, _ := strconv.ParseFloat(get("lon"), 64)

	condition := sim.ConditionA
	if modelType == TypeBridge && hasCondition {
		if raw := strings.TrimSpace(record[conditionCol]); raw != "" {
			condition, err = sim.ParseCondition(raw)
			if err != nil {
				return nil, err
			}
		}
	}

	return &Element{
		ID:        sim.SegmentID(id),
		Road:      get("road"),
		Type:      modelType,
		Name:      get("name"),
		Lat:       lat,
		Lon:       lon,
		LengthM:   length,
		Condition: condition,
		Point:     point,
	}, nil
}

func buildRoadLine(road *Road) {
	if len(road.Elements) < 2 {
		return
	}
	points := make([]geom.XY, 0, len(road.Elements))
	for _, el := range road.Elements {
		coords, ok := el.Point.Coordinates()
		if !ok {
			return
		}
		points = append(points, coords.XY)
	}

	line, err := geo.RoadLine(points)
	if err != nil {
		return
	}
	road.Line = line
	road.hasLine = true

	road.lineDists = make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		road.lineDists[i] = road.lineDists[i-1] +
			math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
}

// Element returns the row for the given segment id.
func (sc *Scenario) Element(id sim.SegmentID) (*Element, bool) {
	pos, ok := sc.position[id]
	if !ok {
		return nil, false
	}
	return pos.road.Elements[pos.index], true
}

// Locate maps a position offset meters into the given segment onto the
// road's projected polyline. Elements of roads too short for a polyline
// resolve to their own point.
func (sc *Scenario) Locate(id sim.SegmentID, offset float64) (geom.Point, bool) {
	pos, ok := sc.position[id]
	if !ok {
		return geom.Point{}, false
	}
	road, i := pos.road, pos.index
	el := road.Elements[i]

	if !road.hasLine || i >= len(road.Elements)-1 {
		return el.Point, true
	}

	t := 0.0
	if el.LengthM > 0 {
		t = offset / el.LengthM
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	target := road.lineDists[i] + t*(road.lineDists[i+1]-road.lineDists[i])
	return geo.InterpolateAlong(road.Line, target), true
}

// RoadNames returns the road names in encounter order.
func (sc *Scenario) RoadNames() []string {
	names := make([]string, len(sc.Roads))
	for i, road := range sc.Roads {
		names[i] = road.Name
	}
	return names
}

// TotalLengthM sums the modeled length of every element.
func (sc *Scenario) TotalLengthM() float64 {
	var total float64
	for _, road := range sc.Roads {
		total += road.TotalLengthM
	}
	return total
}
