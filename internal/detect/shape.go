package detect

import (
	"math"
	"sort"
	"sync/atomic"
)

// ShapeFilter rejects candidates that are implausible instances of the target
// class before any revenue math runs. Roads share spectral signatures with
// parking lots but show up as long slivers, so beyond area bounds the filter
// rejects footprints whose oriented bounding box is too elongated.
type ShapeFilter struct {
	minAreaM2      float64
	maxAreaM2      float64
	minAspectRatio float64

	checked       atomic.Int64
	rejectedArea  atomic.Int64
	rejectedShape atomic.Int64
}

// ShapeStats counts filter outcomes. Rejection is an expected high-frequency
// outcome, so it is tallied rather than reported as an error.
type ShapeStats struct {
	Checked       int64 `json:"checked"`
	RejectedArea  int64 `json:"rejected_area"`
	RejectedShape int64 `json:"rejected_shape"`
}

// NewShapeFilter builds a filter with class-specific bounds. minAspectRatio is
// the smallest accepted shorterSide/longerSide ratio of the footprint's
// oriented bounding box.
func NewShapeFilter(minAreaM2, maxAreaM2, minAspectRatio float64) *ShapeFilter {
	return &ShapeFilter{
		minAreaM2:      minAreaM2,
		maxAreaM2:      maxAreaM2,
		minAspectRatio: minAspectRatio,
	}
}

// Accept reports whether a candidate with the given area and footprint passes
// all plausibility rules. Candidates without a footprint (POI seeds, synthetic
// records) are judged on area alone.
func (f *ShapeFilter) Accept(areaM2 float64, footprint []Point) bool {
	f.checked.Add(1)

	// Elongation is checked first: a road sliver is implausible whatever its
	// area says.
	if len(footprint) >= 3 && AspectRatio(footprint) < f.minAspectRatio {
		f.rejectedShape.Add(1)
		return false
	}
	if areaM2 < f.minAreaM2 || areaM2 > f.maxAreaM2 {
		f.rejectedArea.Add(1)
		return false
	}
	return true
}

// Stats returns the filter's outcome counters.
func (f *ShapeFilter) Stats() ShapeStats {
	return ShapeStats{
		Checked:       f.checked.Load(),
		RejectedArea:  f.rejectedArea.Load(),
		RejectedShape: f.rejectedShape.Load(),
	}
}

// AspectRatio returns shorterSide/longerSide of the footprint's minimum-area
// oriented bounding box, in [0, 1]. Degenerate footprints yield 0.
func AspectRatio(footprint []Point) float64 {
	hull := convexHull(footprint)
	if len(hull) < 3 {
		return 0
	}

	best := math.Inf(1)
	var bestW, bestH float64
	for i := 0; i < len(hull); i++ {
		j := (i + 1) % len(hull)
		dx := hull[j].X - hull[i].X
		dy := hull[j].Y - hull[i].Y
		norm := math.Hypot(dx, dy)
		if norm == 0 {
			continue
		}
		ux, uy := dx/norm, dy/norm // edge direction and its normal

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.X*ux + p.Y*uy
			v := -p.X*uy + p.Y*ux
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		w, h := maxU-minU, maxV-minV
		if area := w * h; area < best {
			best = area
			bestW, bestH = w, h
		}
	}

	longer := math.Max(bestW, bestH)
	if longer == 0 {
		return 0
	}
	return math.Min(bestW, bestH) / longer
}

// convexHull computes the convex hull of the points via the monotone chain
// algorithm, returned counter-clockwise without the closing point.
func convexHull(points []Point) []Point {
	if len(points) < 3 {
		return points
	}

	pts := make([]Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	cross := func(o, a, b Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []Point
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// SquareFootprint builds a square outline of the given area, centered at the
// origin. Used to synthesize footprints for records that only carry an area.
func SquareFootprint(areaM2 float64) []Point {
	half := math.Sqrt(areaM2) / 2
	return []Point{{-half, -half}, {half, -half}, {half, half}, {-half, half}}
}
