// Package landuse detects land cover conversions between two years and
// estimates the PBB revenue each conversion unlocks.
package landuse

import "math"

// Rates bundles the PBB parameters: assessed land value per zone and tax rate
// per assessment category, both keyed the way the tariff regulation names them.
type Rates struct {
	NJOPZoneIDR map[string]int64   // pusat_kota, semi_pusat, pinggiran, rural
	PBBRatePct  map[string]float64 // residential, commercial, industrial, mixed_use
}

// Priority flags how urgently a conversion deserves a field visit.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
	PriorityNone     Priority = "NONE"
)

// transitionPriority ranks the conversions the tax office cares about.
// Water-to-built is flagged critical because it usually means illegal infill.
var transitionPriority = map[[2]string]Priority{
	{"vegetation", "built"}: PriorityHigh,
	{"crops", "built"}:      PriorityHigh,
	{"bare", "built"}:       PriorityMedium,
	{"vegetation", "crops"}: PriorityLow,
	{"water", "built"}:      PriorityCritical,
}

// ClassifyPriority returns the field-visit priority of a conversion.
func ClassifyPriority(fromClass, toClass string) Priority {
	if p, ok := transitionPriority[[2]string{fromClass, toClass}]; ok {
		return p
	}
	return PriorityNone
}

// AnnualTax estimates the yearly PBB a conversion to built land generates.
// Conversions from vegetation or bare land are assessed at the commercial
// rate, everything else residential. Non-built outcomes carry no new tax.
func AnnualTax(areaM2 float64, fromClass, toClass, zone string, r Rates) int64 {
	if toClass != "built" {
		return 0
	}

	njop := r.NJOPZoneIDR[zone]
	rateKey := "residential"
	if fromClass == "vegetation" || fromClass == "bare" {
		rateKey = "commercial"
	}
	rate := r.PBBRatePct[rateKey]

	return int64(math.Round(areaM2 * float64(njop) * rate / 100))
}
