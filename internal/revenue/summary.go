package revenue

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bkd-mataram/padscan/internal/detect"
)

// Category names one revenue stream being estimated.
type Category string

const (
	CategoryParking    Category = "parking"
	CategoryPBB        Category = "pbb"
	CategoryLandChange Category = "land_change"
)

// CategoryOf maps a detection to its revenue category.
func CategoryOf(d detect.Detection) Category {
	switch d.(type) {
	case *detect.Parking:
		return CategoryParking
	case *detect.BuildingChange:
		return CategoryPBB
	default:
		return CategoryLandChange
	}
}

// TargetReport compares an estimated stream against its annual target.
type TargetReport struct {
	Category     Category `json:"category"`
	TargetIDR    int64    `json:"target_idr"`
	EstimatedIDR int64    `json:"estimated_idr"`
	PctOfTarget  float64  `json:"pct_of_target"`
}

// AgainstTarget builds a TargetReport for one category. A zero target yields a
// zero percentage rather than a division error.
func AgainstTarget(category Category, targetIDR int64, s Summary) TargetReport {
	r := TargetReport{
		Category:     category,
		TargetIDR:    targetIDR,
		EstimatedIDR: s.TotalAnnualIDR,
	}
	if targetIDR > 0 {
		r.PctOfTarget = float64(s.TotalAnnualIDR) / float64(targetIDR) * 100
	}
	return r
}

// idPrinter formats numbers with Indonesian digit grouping.
var idPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR renders an amount the way local reports write rupiah, e.g.
// "Rp 5.000.000.000".
func FormatIDR(v int64) string {
	return idPrinter.Sprintf("Rp %d", v)
}
