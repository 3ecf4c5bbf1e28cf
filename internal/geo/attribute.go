package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// Attributor assigns linear features (streets, gangs) to administrative units
// by length coverage. Assignment is hierarchical and strict: the best-covered
// kelurahan is always reported, but the Lingkungan and RT tiers are only
// accepted when their summed coverage clears the configured thresholds, so a
// street straddling two RTs stays attributed at the Lingkungan level.
type Attributor struct {
	lingkunganPct float64
	rtPct         float64
}

// Attribution is the outcome of attributing one linear feature. Unresolved
// tiers hold "-" so tabular output stays aligned with manual review sheets.
type Attribution struct {
	Kelurahan  string
	Lingkungan string
	SLS        string // full SLS label, only set when the RT tier resolved
	Coverage   string // human-readable coverage summary
	Level      Level  // deepest resolved tier
}

const unresolved = "-"

// NewAttributor builds an Attributor with the given acceptance thresholds,
// both expressed in percent.
func NewAttributor(lingkunganPct, rtPct float64) *Attributor {
	return &Attributor{lingkunganPct: lingkunganPct, rtPct: rtPct}
}

// Attribute resolves the administrative placement of a multi-part line against
// the candidate units. Coverage of a tier is the sum of per-unit coverages of
// its member SLS polygons, so fragmented boundaries do not penalize a street
// that is fully inside one lingkungan.
func (a *Attributor) Attribute(line *geom.MultiLineString, units []*AdministrativeUnit) Attribution {
	out := Attribution{
		Kelurahan:  unresolved,
		Lingkungan: unresolved,
		SLS:        unresolved,
		Coverage:   "No match",
		Level:      LevelDistrict,
	}

	type overlap struct {
		unit     *AdministrativeUnit
		coverage float64 // percent of the line's length inside the unit
	}
	var overlaps []overlap
	for _, u := range units {
		cov := multiLineCoverage(line, u.Geometry) * 100
		if cov <= 0 {
			continue
		}
		overlaps = append(overlaps, overlap{unit: u, coverage: cov})
	}
	if len(overlaps) == 0 {
		return out
	}

	// Tier 1: best kelurahan is the baseline, accepted unconditionally.
	kelCov := map[string]float64{}
	for _, o := range overlaps {
		kelCov[o.unit.Kelurahan] += o.coverage
	}
	bestKel, bestKelCov := argmax(kelCov)
	out.Kelurahan = bestKel
	out.Coverage = fmt.Sprintf("Kelurahan Only (%.1f%%)", bestKelCov)
	out.Level = LevelKelurahan

	// Tier 2: lingkungan within the best kelurahan.
	lingCov := map[string]float64{}
	for _, o := range overlaps {
		if o.unit.Kelurahan == bestKel {
			lingCov[o.unit.Lingkungan()] += o.coverage
		}
	}
	bestLing, bestLingCov := argmax(lingCov)
	if bestLingCov < a.lingkunganPct {
		return out
	}
	out.Lingkungan = bestLing
	out.Coverage = fmt.Sprintf("%.1f%% (Lingk)", bestLingCov)
	out.Level = LevelLingkungan

	// Tier 3: a specific SLS within the best lingkungan, keyed by full label.
	slsCov := map[string]float64{}
	for _, o := range overlaps {
		if o.unit.Kelurahan == bestKel && o.unit.Lingkungan() == bestLing {
			slsCov[o.unit.SLSLabel] += o.coverage
		}
	}
	bestSLS, bestSLSCov := argmax(slsCov)
	if bestSLSCov < a.rtPct {
		return out
	}
	out.SLS = bestSLS
	out.Coverage = fmt.Sprintf("%.1f%% (RT)", bestSLSCov)
	out.Level = LevelRT
	return out
}

// multiLineCoverage returns the fraction of the multi-line's total length that
// lies inside the multipolygon.
func multiLineCoverage(line *geom.MultiLineString, mp *geom.MultiPolygon) float64 {
	if line == nil || mp == nil {
		return 0
	}
	var total, inside float64
	for i := 0; i < line.NumLineStrings(); i++ {
		ls := line.LineString(i)
		l := LineLength(ls)
		total += l
		inside += LineCoverage(ls, mp) * l
	}
	if total == 0 {
		return 0
	}
	frac := inside / total
	if frac > 1 {
		frac = 1
	}
	return frac
}

// argmax returns the key with the greatest value. Ties break toward the
// lexically smaller key so attribution is deterministic across runs.
func argmax(m map[string]float64) (string, float64) {
	var (
		bestKey string
		bestVal float64
		found   bool
	)
	for k, v := range m {
		if !found || v > bestVal || (v == bestVal && k < bestKey) {
			bestKey, bestVal, found = k, v, true
		}
	}
	return bestKey, bestVal
}
