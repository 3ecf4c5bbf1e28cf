package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// rect builds a w x h rectangle rotated is not needed for these cases.
func rect(w, h float64) []Point {
	return []Point{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		name      string
		footprint []Point
		want      float64
	}{
		{name: "square", footprint: rect(10, 10), want: 1},
		{name: "two to one rectangle", footprint: rect(20, 10), want: 0.5},
		{name: "road sliver", footprint: rect(1000, 50), want: 0.05},
		{name: "rotated square", footprint: []Point{{0, 5}, {5, 0}, {10, 5}, {5, 10}}, want: 1},
		{name: "degenerate segment", footprint: []Point{{0, 0}, {1, 1}}, want: 0},
		{name: "empty", footprint: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AspectRatio(tt.footprint), 1e-9)
		})
	}
}

func TestShapeFilterParking(t *testing.T) {
	// Parking defaults: area 100..10000 m2, min ratio 0.3.
	f := NewShapeFilter(100, 10000, 0.3)

	tests := []struct {
		name      string
		areaM2    float64
		footprint []Point
		want      bool
	}{
		{name: "150m2 square passes", areaM2: 150, footprint: SquareFootprint(150), want: true},
		{name: "elongated sliver rejected regardless of area", areaM2: 50000, footprint: rect(1000, 50), want: false},
		{name: "too small", areaM2: 99, footprint: SquareFootprint(99), want: false},
		{name: "too large", areaM2: 10001, footprint: SquareFootprint(10001), want: false},
		{name: "ratio exactly at threshold passes", areaM2: 300, footprint: rect(100, 30), want: true},
		{name: "footprintless record judged on area alone", areaM2: 500, footprint: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Accept(tt.areaM2, tt.footprint))
		})
	}

	stats := f.Stats()
	assert.Equal(t, int64(6), stats.Checked)
	assert.Equal(t, int64(2), stats.RejectedArea)
	assert.Equal(t, int64(1), stats.RejectedShape)
}

func TestShapeFilterAcceptsBoundaryAreas(t *testing.T) {
	f := NewShapeFilter(100, 10000, 0.3)
	assert.True(t, f.Accept(100, SquareFootprint(100)))
	assert.True(t, f.Accept(10000, SquareFootprint(10000)))
}
