package geo

import (
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoadLine_Valid(t *testing.T) {
	ls, err := RoadLine([]geom.XY{
		{X: 100.5, Y: 200.25},
		{X: 300.75, Y: 400.5},
		{X: 500, Y: 600},
	})

	require.NoError(t, err)
	seq := ls.Coordinates()
	require.Equal(t, 3, seq.Length())
	assert.Equal(t, 100.5, seq.GetXY(0).X)
	assert.Equal(t, 200.25, seq.GetXY(0).Y)
	assert.Equal(t, 500.0, seq.GetXY(2).X)
	assert.Equal(t, 600.0, seq.GetXY(2).Y)
}

func TestRoadLine_TooFewPoints(t *testing.T) {
	_, err := RoadLine([]geom.XY{{X: 100, Y: 200}})
	require.Error(t, err)
}

func TestInterpolateAlong(t *testing.T) {
	// An L shape, 100 units east then 50 units north.
	ls, err := RoadLine([]geom.XY{
		{X: 0, Y: 0},
		{X: 100, Y: 0},
		{X: 100, Y: 50},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		distance float64
		wantX    float64
		wantY    float64
	}{
		{"start", 0, 0, 0},
		{"halfway first leg", 50, 50, 0},
		{"corner", 100, 100, 0},
		{"halfway second leg", 125, 100, 25},
		{"past the end", 200, 100, 50},
		{"negative clamps to start", -5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := InterpolateAlong(ls, tt.distance)
			coords, ok := pt.Coordinates()
			require.True(t, ok)
			assert.InDelta(t, tt.wantX, coords.X, 1e-9)
			assert.InDelta(t, tt.wantY, coords.Y, 1e-9)
		})
	}
}

func TestInterpolateAlong_EmptyLine(t *testing.T) {
	pt := InterpolateAlong(geom.LineString{}, 10)
	assert.True(t, pt.IsEmpty())
}
