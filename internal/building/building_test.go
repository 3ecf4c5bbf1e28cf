package building

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/imagery"
	"github.com/bkd-mataram/padscan/internal/landuse"
)

func testRates() landuse.Rates {
	return landuse.Rates{
		NJOPZoneIDR: map[string]int64{"semi_pusat": 2_000_000, "pusat_kota": 3_000_000},
		PBBRatePct:  map[string]float64{"residential": 0.1, "commercial": 0.2},
	}
}

func TestTaxIncrease(t *testing.T) {
	rates := testRates()

	tests := []struct {
		name           string
		areaIncrease   float64
		heightIncrease float64
		zone           string
		want           int64
	}{
		{
			name: "area expansion only",
			// 100 * 2,000,000 * 0.2 / 100 = 400,000
			areaIncrease: 100, heightIncrease: 0, zone: "semi_pusat",
			want: 400_000,
		},
		{
			name: "height multiplier applies",
			// 400,000 * (1 + 6/10) = 640,000
			areaIncrease: 100, heightIncrease: 6, zone: "semi_pusat",
			want: 640_000,
		},
		{
			name: "no expansion no tax",
			areaIncrease: 0, heightIncrease: 6, zone: "semi_pusat",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TaxIncrease(tt.areaIncrease, tt.heightIncrease, tt.zone, rates))
		})
	}
}

func TestNeedsFileCheck(t *testing.T) {
	assert.True(t, NeedsFileCheck(60, 0))
	assert.True(t, NeedsFileCheck(10, 3))
	assert.False(t, NeedsFileCheck(30, 0))
}

type stubClassifier struct {
	deltas []imagery.BuildingDelta
	err    error
}

func (s *stubClassifier) ParkingCandidates(context.Context, imagery.Region, int) ([]imagery.Feature, error) {
	return nil, eris.New("not implemented")
}

func (s *stubClassifier) LandChanges(context.Context, imagery.Region, int, int) ([]imagery.Change, error) {
	return nil, eris.New("not implemented")
}

func (s *stubClassifier) BuildingDeltas(context.Context, imagery.Region, int, int) ([]imagery.BuildingDelta, error) {
	return s.deltas, s.err
}

func TestPipelineDetect(t *testing.T) {
	classifier := &stubClassifier{deltas: []imagery.BuildingDelta{
		{Feature: imagery.Feature{Lon: 116.11, Lat: -8.58, AreaM2: 300, Confidence: 0.8},
			AreaBeforeM2: 200, AreaAfterM2: 300, HeightBeforeM: 6, HeightAfterM: 6},
		{Feature: imagery.Feature{Lon: 116.12, Lat: -8.58, AreaM2: 15, Confidence: 0.9},
			AreaBeforeM2: 10, AreaAfterM2: 15, HeightBeforeM: 3, HeightAfterM: 3}, // below min building area
		{Feature: imagery.Feature{Lon: 116.13, Lat: -8.58, AreaM2: 250, Confidence: 0.7},
			AreaBeforeM2: 250, AreaAfterM2: 250, HeightBeforeM: 6, HeightAfterM: 6}, // unchanged
	}}

	p := NewPipeline(classifier, nil, 20, "semi_pusat", testRates())
	res, err := p.Detect(context.Background(), imagery.Region{}, 2023, 2025)
	require.NoError(t, err)

	require.Len(t, res.Detections, 1)
	bld := res.Detections[0]
	assert.Equal(t, "BLD-001", bld.ID)
	assert.Equal(t, int64(400_000), bld.TaxIncreaseIDR)
}

func TestPipelineSyntheticFallback(t *testing.T) {
	classifier := &stubClassifier{err: imagery.ErrUnavailable}
	p := NewPipeline(classifier, imagery.NewSynthetic(42), 20, "semi_pusat", testRates())

	res, err := p.Detect(context.Background(), imagery.Region{CenterLon: 116.1167, CenterLat: -8.5833}, 2023, 2025)
	require.NoError(t, err)
	assert.Equal(t, detect.SourceSynthetic, res.Source)
	assert.NotEmpty(t, res.Detections)
}
