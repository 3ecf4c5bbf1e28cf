package detect

import (
	"github.com/twpayne/go-geom"

	"github.com/bkd-mataram/padscan/internal/geo"
)

// Set is an immutable collection of detections fused from independent evidence
// sources. Batches are concatenated as-is: a POI-derived estimate and a
// spectral polygon over the same physical lot stay two independent signals,
// and no cross-source confidence normalization happens.
type Set struct {
	items []Detection
}

// NewSet fuses the given source-tagged batches into one set.
func NewSet(batches ...[]Detection) *Set {
	var items []Detection
	for _, b := range batches {
		items = append(items, b...)
	}
	return &Set{items: items}
}

// Len returns the number of detections in the set.
func (s *Set) Len() int { return len(s.items) }

// All returns every detection in the set, in fusion order.
func (s *Set) All() []Detection {
	out := make([]Detection, len(s.items))
	copy(out, s.items)
	return out
}

// VerifiedOnly returns the strict view: POI-sourced detections plus any
// detection whose AI validation confirmed it. Unverified detections are
// excluded but untouched, so switching views never mutates the set.
func (s *Set) VerifiedOnly() []Detection {
	var out []Detection
	for _, d := range s.items {
		m := d.Meta()
		if m.Source == SourcePOI || (m.Validation != nil && m.Validation.Verified) {
			out = append(out, d)
		}
	}
	return out
}

// Contained returns a new set holding only detections whose centroid falls
// inside the region. A point is binary in/out, with no partial-coverage logic.
// A nil region means no spatial restriction.
func (s *Set) Contained(region *geom.MultiPolygon) *Set {
	if region == nil {
		return s
	}
	var items []Detection
	for _, d := range s.items {
		m := d.Meta()
		if geo.PointInMultiPolygon(region, m.Lon, m.Lat) {
			items = append(items, d)
		}
	}
	return &Set{items: items}
}

// Synthetic reports whether any detection in the set came from the synthetic
// fallback generator.
func (s *Set) Synthetic() bool {
	for _, d := range s.items {
		if d.Meta().Source == SourceSynthetic {
			return true
		}
	}
	return false
}
