// Package revenue reduces attributed detection sets to the summary figures the
// tax office plans against, and compares them to the annual collection targets.
package revenue

import (
	"github.com/twpayne/go-geom"

	"github.com/bkd-mataram/padscan/internal/detect"
)

// Summary is the derived rollup of one detection set under one spatial filter.
// It is recomputed whenever either input changes and never persisted.
type Summary struct {
	Count          int     `json:"count"`
	TotalAreaM2    float64 `json:"total_area_m2"`
	TotalAnnualIDR int64   `json:"total_annual_idr"`
	Synthetic      bool    `json:"synthetic"`
}

// Aggregate reduces the detections inside the region to a Summary. The
// reduction is pure: identical inputs always produce identical output, and the
// set is never mutated. A nil region aggregates everything.
func Aggregate(set *detect.Set, region *geom.MultiPolygon) Summary {
	clipped := set.Contained(region)

	var s Summary
	s.Synthetic = clipped.Synthetic()
	for _, d := range clipped.All() {
		m := d.Meta()
		s.Count++
		s.TotalAreaM2 += m.AreaM2
		s.TotalAnnualIDR += d.AnnualRevenue()
	}
	return s
}

// AggregateVerified is Aggregate restricted to the strict view: POI-sourced
// detections and AI-confirmed ones.
func AggregateVerified(set *detect.Set, region *geom.MultiPolygon) Summary {
	return Aggregate(detect.NewSet(set.Contained(region).VerifiedOnly()), nil)
}
