// Package detect defines the detection record types shared by the analysis
// pipelines, the plausibility filter applied to raw classifier output, and the
// fusion of detections from independent evidence sources.
package detect

import "fmt"

// Source tags where a detection came from. Downstream consumers rely on the
// tag to tell real observations from synthetic fallback data.
type Source string

const (
	SourceSatellite Source = "Satellite Detection"
	SourcePOI       Source = "OSM POI"
	SourceSynthetic Source = "Dummy Data (Demo Mode)"
)

// Validation is the outcome of an AI verification call for one detection. A
// nil Validation on a detection means "not yet verified", which is never the
// same as verified=false.
type Validation struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Model      string  `json:"model,omitempty"`
}

// Base carries the fields every detection class shares.
type Base struct {
	ID         string      `json:"id"`
	Lat        float64     `json:"lat"`
	Lon        float64     `json:"lon"`
	AreaM2     float64     `json:"area_m2"`
	Confidence float64     `json:"confidence"`
	Source     Source      `json:"source"`
	Validation *Validation `json:"validation,omitempty"`

	// Footprint is the detection outline in a local planar frame, meters.
	// Synthetic and POI-seeded detections may not have one.
	Footprint []Point `json:"-"`

	// Placement fields are filled by spatial attribution.
	District  string `json:"district,omitempty"`
	Kelurahan string `json:"kelurahan,omitempty"`
	SLSLabel  string `json:"sls_label,omitempty"`
}

// Point is a planar coordinate in meters.
type Point struct {
	X, Y float64
}

// Capacity is the estimated slot split of a parking lot.
type Capacity struct {
	Motor int `json:"motor"`
	Mobil int `json:"mobil"`
	Total int `json:"total"`
}

// Parking is one detected parking lot candidate with its revenue estimate.
type Parking struct {
	Base
	Type           string   `json:"parking_type"` // umum, perkantoran, pasar, mall, hotel
	Capacity       Capacity `json:"estimated_capacity"`
	RevenueDaily   int64    `json:"revenue_daily"`
	RevenueMonthly int64    `json:"revenue_monthly"`
	RevenueAnnual  int64    `json:"revenue_annual"`
}

// LandChange is one detected land-use conversion with its tax estimate.
type LandChange struct {
	Base
	FromClass    string `json:"from_class"`
	ToClass      string `json:"to_class"`
	Zone         string `json:"zone"`
	AnnualTaxIDR int64  `json:"annual_tax_idr"`
}

// BuildingChange is one detected building expansion with its tax delta.
type BuildingChange struct {
	Base
	AreaBeforeM2   float64 `json:"area_before_m2"`
	AreaAfterM2    float64 `json:"area_after_m2"`
	HeightBeforeM  float64 `json:"height_before_m"`
	HeightAfterM   float64 `json:"height_after_m"`
	Zone           string  `json:"zone"`
	TaxIncreaseIDR int64   `json:"tax_increase_idr"`
}

// Detection is the shared capability set of the three detection classes.
type Detection interface {
	// Meta returns the shared base record.
	Meta() *Base
	// AnnualRevenue returns the detection's annual revenue or tax estimate
	// in rupiah.
	AnnualRevenue() int64
}

func (p *Parking) Meta() *Base        { return &p.Base }
func (c *LandChange) Meta() *Base     { return &c.Base }
func (b *BuildingChange) Meta() *Base { return &b.Base }

func (p *Parking) AnnualRevenue() int64        { return p.RevenueAnnual }
func (c *LandChange) AnnualRevenue() int64     { return c.AnnualTaxIDR }
func (b *BuildingChange) AnnualRevenue() int64 { return b.TaxIncreaseIDR }

// FormatID builds the conventional detection identifier, e.g. "PKR-003".
func FormatID(prefix string, n int) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}
