package imagery

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/geo"
)

// ErrUnavailable reports that no usable scene exists for the requested region
// and period (cloud cover, missing acquisitions, or a dead backend). Pipelines
// recover by substituting synthetic detections tagged as such.
var ErrUnavailable = eris.New("imagery: no usable scene for region")

// Region is the spatial scope of one classification request.
type Region struct {
	CenterLon float64
	CenterLat float64
	RadiusM   int
}

// RegionForDistrict centers a request on a district's reference point.
func RegionForDistrict(d geo.District) Region {
	return Region{CenterLon: d.Lon, CenterLat: d.Lat, RadiusM: d.RadiusM}
}

// Feature is one raw polygon candidate returned by the classifier, before any
// plausibility filtering.
type Feature struct {
	Lon        float64        `json:"lon"`
	Lat        float64        `json:"lat"`
	AreaM2     float64        `json:"area_m2"`
	Confidence float64        `json:"confidence"`
	Footprint  []detect.Point `json:"footprint,omitempty"`
}

// Change is one detected land cover transition between two years.
type Change struct {
	Feature
	FromClass string `json:"from_class"`
	ToClass   string `json:"to_class"`
}

// BuildingDelta is one detected building footprint or height change.
type BuildingDelta struct {
	Feature
	AreaBeforeM2  float64 `json:"area_before_m2"`
	AreaAfterM2   float64 `json:"area_after_m2"`
	HeightBeforeM float64 `json:"height_before_m"`
	HeightAfterM  float64 `json:"height_after_m"`
}

// TextureSampler samples a texture/variability signal at many points in one
// batched request. One call per point would be prohibitively slow against the
// classification service, so callers always batch.
type TextureSampler interface {
	// SampleTexture returns one activity score in [0, 1] per input point,
	// in input order.
	SampleTexture(ctx context.Context, points [][2]float64) ([]float64, error)
}

// Classifier is the external satellite classification capability. All methods
// return ErrUnavailable (possibly wrapped) when no usable scene exists.
type Classifier interface {
	// ParkingCandidates returns built-up polygons spectrally consistent with
	// paved parking for the given year.
	ParkingCandidates(ctx context.Context, region Region, year int) ([]Feature, error)
	// LandChanges returns land cover transitions between the two years.
	LandChanges(ctx context.Context, region Region, yearStart, yearEnd int) ([]Change, error)
	// BuildingDeltas returns building footprint and height changes between
	// the two years.
	BuildingDeltas(ctx context.Context, region Region, yearStart, yearEnd int) ([]BuildingDelta, error)
}
