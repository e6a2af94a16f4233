package geo

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// RoadLine builds a geom.LineString from an ordered list of projected
// points, one per road element.
func RoadLine(points []geom.XY) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("road line must have at least 2 points, got %d", len(points))
	}

	// Build coordinate sequence for LineString
	flatCoords := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		flatCoords = append(flatCoords, pt.X, pt.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls := geom.NewLineString(seq)

	return ls, nil
}

// InterpolateAlong returns the point at the given distance from the start of
// the line, measured in the line's own units. Distances outside the line are
// clamped to its endpoints.
func InterpolateAlong(ls geom.LineString, distance float64) geom.Point {
	seq := ls.Coordinates()
	n := seq.Length()
	if n == 0 {
		return geom.NewEmptyPoint(geom.DimXY)
	}
	if n == 1 || distance <= 0 {
		return pointAt(seq.GetXY(0))
	}

	remaining := distance
	for i := 0; i+1 < n; i++ {
		a := seq.GetXY(i)
		b := seq.GetXY(i + 1)
		segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
		if remaining <= segLen && segLen > 0 {
			t := remaining / segLen
			return pointAt(geom.XY{
				X: a.X + t*(b.X-a.X),
				Y: a.Y + t*(b.Y-a.Y),
			})
		}
		remaining -= segLen
	}
	return pointAt(seq.GetXY(n - 1))
}

func pointAt(xy geom.XY) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: xy})
}
