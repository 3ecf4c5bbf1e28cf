package geo

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

// PointInMultiPolygon reports whether the point (x, y) falls inside the
// multipolygon using even-odd ray casting. Holes are honored because a crossing
// of any ring flips the parity.
func PointInMultiPolygon(mp *geom.MultiPolygon, x, y float64) bool {
	if mp == nil {
		return false
	}
	for i := 0; i < mp.NumPolygons(); i++ {
		if pointInPolygon(mp.Polygon(i), x, y) {
			return true
		}
	}
	return false
}

func pointInPolygon(p *geom.Polygon, x, y float64) bool {
	inside := false
	for r := 0; r < p.NumLinearRings(); r++ {
		if pointInRing(p.LinearRing(r), x, y) {
			inside = !inside
		}
	}
	return inside
}

func pointInRing(ring *geom.LinearRing, x, y float64) bool {
	coords := ring.FlatCoords()
	stride := ring.Stride()
	n := len(coords) / stride
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := coords[i*stride], coords[i*stride+1]
		xj, yj := coords[j*stride], coords[j*stride+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// LineLength returns the planar length of the linestring in coordinate units.
func LineLength(line *geom.LineString) float64 {
	coords := line.FlatCoords()
	stride := line.Stride()
	n := len(coords) / stride
	var total float64
	for i := 1; i < n; i++ {
		dx := coords[i*stride] - coords[(i-1)*stride]
		dy := coords[i*stride+1] - coords[(i-1)*stride+1]
		total += math.Hypot(dx, dy)
	}
	return total
}

// LineCoverage returns the fraction, in [0, 1], of the linestring's length that
// lies inside the multipolygon. Each segment is split at its crossings with the
// polygon rings and sub-segments are classified by midpoint containment. Both
// lengths are planar, so the ratio is unaffected by the degree-based CRS.
func LineCoverage(line *geom.LineString, mp *geom.MultiPolygon) float64 {
	total := LineLength(line)
	if total == 0 || mp == nil {
		return 0
	}
	bounds := mp.Bounds()
	coords := line.FlatCoords()
	stride := line.Stride()
	n := len(coords) / stride
	var inside float64
	for i := 1; i < n; i++ {
		x1, y1 := coords[(i-1)*stride], coords[(i-1)*stride+1]
		x2, y2 := coords[i*stride], coords[i*stride+1]
		if !segmentTouchesBounds(bounds, x1, y1, x2, y2) {
			continue
		}
		inside += segmentLengthInside(mp, x1, y1, x2, y2)
	}
	frac := inside / total
	if frac > 1 {
		frac = 1
	}
	return frac
}

func segmentTouchesBounds(b *geom.Bounds, x1, y1, x2, y2 float64) bool {
	minX, maxX := math.Min(x1, x2), math.Max(x1, x2)
	minY, maxY := math.Min(y1, y2), math.Max(y1, y2)
	return maxX >= b.Min(0) && minX <= b.Max(0) && maxY >= b.Min(1) && minY <= b.Max(1)
}

func segmentLengthInside(mp *geom.MultiPolygon, x1, y1, x2, y2 float64) float64 {
	params := []float64{0, 1}
	for p := 0; p < mp.NumPolygons(); p++ {
		poly := mp.Polygon(p)
		for r := 0; r < poly.NumLinearRings(); r++ {
			params = appendRingCrossings(params, poly.LinearRing(r), x1, y1, x2, y2)
		}
	}
	sort.Float64s(params)
	segLen := math.Hypot(x2-x1, y2-y1)
	var inside float64
	for i := 1; i < len(params); i++ {
		t0, t1 := params[i-1], params[i]
		if t1-t0 < 1e-12 {
			continue
		}
		tm := (t0 + t1) / 2
		if PointInMultiPolygon(mp, x1+(x2-x1)*tm, y1+(y2-y1)*tm) {
			inside += (t1 - t0) * segLen
		}
	}
	return inside
}

func appendRingCrossings(params []float64, ring *geom.LinearRing, x1, y1, x2, y2 float64) []float64 {
	coords := ring.FlatCoords()
	stride := ring.Stride()
	n := len(coords) / stride
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		x3, y3 := coords[j*stride], coords[j*stride+1]
		x4, y4 := coords[i*stride], coords[i*stride+1]
		if t, ok := segmentIntersectionParam(x1, y1, x2, y2, x3, y3, x4, y4); ok {
			params = append(params, t)
		}
	}
	return params
}

// segmentIntersectionParam returns the parameter t along (x1,y1)-(x2,y2) where
// it crosses (x3,y3)-(x4,y4), if the segments properly intersect.
func segmentIntersectionParam(x1, y1, x2, y2, x3, y3, x4, y4 float64) (float64, bool) {
	dx1, dy1 := x2-x1, y2-y1
	dx2, dy2 := x4-x3, y4-y3
	denom := dx1*dy2 - dy1*dx2
	if math.Abs(denom) < 1e-18 {
		return 0, false
	}
	t := ((x3-x1)*dy2 - (y3-y1)*dx2) / denom
	u := ((x3-x1)*dy1 - (y3-y1)*dx1) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// BoundsOf returns the bounding box of the multipolygon as
// (minLon, minLat, maxLon, maxLat).
func BoundsOf(mp *geom.MultiPolygon) (minX, minY, maxX, maxY float64) {
	b := mp.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1)
}

// Centroid returns the vertex-average centroid of the multipolygon, which is
// adequate for centering imagery requests over a unit.
func Centroid(mp *geom.MultiPolygon) (x, y float64) {
	coords := mp.FlatCoords()
	stride := mp.Stride()
	n := len(coords) / stride
	if n == 0 {
		return 0, 0
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += coords[i*stride]
		sy += coords[i*stride+1]
	}
	return sx / float64(n), sy / float64(n)
}

// AsMultiPolygon normalizes Polygon and MultiPolygon geometries to a
// MultiPolygon; other geometry types yield nil.
func AsMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// MergeGeometries concatenates unit polygons into a single multipolygon. The
// result is containment-equivalent to a true union for point and coverage
// queries under the even-odd rule applied per member polygon.
func MergeGeometries(units []*AdministrativeUnit) *geom.MultiPolygon {
	var merged *geom.MultiPolygon
	for _, u := range units {
		if u.Geometry == nil {
			continue
		}
		if merged == nil {
			merged = geom.NewMultiPolygon(u.Geometry.Layout())
		}
		for i := 0; i < u.Geometry.NumPolygons(); i++ {
			if err := merged.Push(u.Geometry.Polygon(i)); err != nil {
				continue
			}
		}
	}
	return merged
}
