package geo

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Index holds the parsed SLS polygons for Kota Mataram and answers listing,
// selection, and containment queries. An Index is immutable after load and safe
// for concurrent use.
type Index struct {
	units []*AdministrativeUnit
}

// Selection narrows the hierarchy. The list fields are order-irrelevant sets;
// an empty field means "no restriction beyond the parent level", so each
// non-empty field only ever shrinks the match set.
type Selection struct {
	District   string
	Kelurahan  []string
	Lingkungan []string
	RT         []string
}

// Placement is the resolved administrative context of a point.
type Placement struct {
	District   string `json:"district"`
	Kelurahan  string `json:"kelurahan"`
	Lingkungan string `json:"lingkungan"`
	RT         string `json:"rt"`
	SLSLabel   string `json:"sls_label"`
}

// NewIndex builds an Index over the given units.
func NewIndex(units []*AdministrativeUnit) *Index {
	return &Index{units: units}
}

// Len returns the number of SLS units in the index.
func (ix *Index) Len() int { return len(ix.units) }

// LoadGeoJSON parses a GeoJSON feature collection of SLS polygons. Features
// without a polygonal geometry or an SLS label are skipped.
func LoadGeoJSON(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: read boundary file")
	}

	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "geo: parse boundary geojson")
	}

	units := make([]*AdministrativeUnit, 0, len(fc.Features))
	for _, f := range fc.Features {
		mp := AsMultiPolygon(f.Geometry)
		if mp == nil {
			continue
		}
		label := propString(f.Properties, "nmsls")
		if label == "" {
			continue
		}
		units = append(units, &AdministrativeUnit{
			District:     NormalizeDistrict(propString(f.Properties, "nmkec")),
			DistrictCode: propString(f.Properties, "kdkec"),
			Kelurahan:    strings.TrimSpace(propString(f.Properties, "nmdesa")),
			SLSLabel:     strings.TrimSpace(label),
			Geometry:     mp,
		})
	}
	if len(units) == 0 {
		return nil, eris.New("geo: boundary file contains no usable SLS features")
	}

	zap.L().Debug("geo: boundary geojson loaded",
		zap.String("path", path),
		zap.Int("units", len(units)))
	return NewIndex(units), nil
}

// LoadShapefile parses an ESRI shapefile of SLS polygons. Attribute names are
// matched case-insensitively against nmkec, nmdesa, nmsls, and kdkec.
func LoadShapefile(path string) (*Index, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open boundary shapefile")
	}
	defer r.Close()

	fieldIdx := map[string]int{}
	for i, f := range r.Fields() {
		name := strings.ToLower(strings.TrimRight(string(f.Name[:]), "\x00"))
		fieldIdx[name] = i
	}
	attr := func(row int, name string) string {
		i, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(r.ReadAttribute(row, i))
	}

	var units []*AdministrativeUnit
	for row := 0; r.Next(); row++ {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		mp := shpPolygonToMultiPolygon(poly)
		if mp == nil {
			continue
		}
		label := attr(row, "nmsls")
		if label == "" {
			continue
		}
		units = append(units, &AdministrativeUnit{
			District:     NormalizeDistrict(attr(row, "nmkec")),
			DistrictCode: attr(row, "kdkec"),
			Kelurahan:    attr(row, "nmdesa"),
			SLSLabel:     label,
			Geometry:     mp,
		})
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: read boundary shapefile")
	}
	if len(units) == 0 {
		return nil, eris.New("geo: boundary shapefile contains no usable SLS features")
	}

	zap.L().Debug("geo: boundary shapefile loaded",
		zap.String("path", path),
		zap.Int("units", len(units)))
	return NewIndex(units), nil
}

func shpPolygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed boundary ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed boundary part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if v, ok := props[strings.ToUpper(key)]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Units returns the SLS units matching the selection, in load order.
func (ix *Index) Units(sel Selection) []*AdministrativeUnit {
	district := NormalizeDistrict(sel.District)
	var out []*AdministrativeUnit
	for _, u := range ix.units {
		if district != "" && u.District != district {
			continue
		}
		if !memberOf(sel.Kelurahan, u.Kelurahan) {
			continue
		}
		rt, ling := DecomposeLabel(u.SLSLabel)
		if !memberOf(sel.Lingkungan, ling) {
			continue
		}
		if !memberOf(sel.RT, rt) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// memberOf treats an empty filter as "no restriction".
func memberOf(filter []string, value string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == value {
			return true
		}
	}
	return false
}

// Kelurahan lists the distinct kelurahan names in the district, sorted.
func (ix *Index) Kelurahan(district string) []string {
	return ix.distinct(Selection{District: district}, func(u *AdministrativeUnit) string {
		return u.Kelurahan
	})
}

// Lingkungan lists the distinct Lingkungan parts under the kelurahan filter,
// sorted. An empty filter spans the whole district.
func (ix *Index) Lingkungan(district string, kelurahan ...string) []string {
	return ix.distinct(Selection{District: district, Kelurahan: kelurahan}, func(u *AdministrativeUnit) string {
		return u.Lingkungan()
	})
}

// RTs lists the distinct RT parts under the kelurahan and lingkungan filters,
// sorted.
func (ix *Index) RTs(district string, kelurahan, lingkungan []string) []string {
	sel := Selection{District: district, Kelurahan: kelurahan, Lingkungan: lingkungan}
	return ix.distinct(sel, func(u *AdministrativeUnit) string {
		return u.RT()
	})
}

func (ix *Index) distinct(sel Selection, key func(*AdministrativeUnit) string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, u := range ix.Units(sel) {
		k := key(u)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MergedGeometry returns a single multipolygon covering every unit the
// selection matches, or nil when nothing matches.
func (ix *Index) MergedGeometry(sel Selection) *geom.MultiPolygon {
	return MergeGeometries(ix.Units(sel))
}

// FindUnitContaining returns the first SLS unit whose polygon contains the
// point, or nil. Bounding boxes prefilter the scan.
func (ix *Index) FindUnitContaining(lon, lat float64) *AdministrativeUnit {
	for _, u := range ix.units {
		b := u.Geometry.Bounds()
		if lon < b.Min(0) || lon > b.Max(0) || lat < b.Min(1) || lat > b.Max(1) {
			continue
		}
		if PointInMultiPolygon(u.Geometry, lon, lat) {
			return u
		}
	}
	return nil
}

// Locate resolves the full administrative placement of a point. The second
// return is false when the point falls outside every SLS polygon.
func (ix *Index) Locate(lon, lat float64) (Placement, bool) {
	u := ix.FindUnitContaining(lon, lat)
	if u == nil {
		return Placement{}, false
	}
	rt, ling := DecomposeLabel(u.SLSLabel)
	return Placement{
		District:   u.District,
		Kelurahan:  u.Kelurahan,
		Lingkungan: ling,
		RT:         rt,
		SLSLabel:   u.SLSLabel,
	}, true
}

// LocateSLS resolves an SLS label to its parent kelurahan and lingkungan
// within a district. The third return is false when no unit carries the label.
func (ix *Index) LocateSLS(district, slsLabel string) (kelurahan, lingkungan string, ok bool) {
	district = NormalizeDistrict(district)
	for _, u := range ix.units {
		if u.District != district || u.SLSLabel != slsLabel {
			continue
		}
		return u.Kelurahan, u.Lingkungan(), true
	}
	return "", "", false
}

// DistrictGeoJSON serializes the selection's units back to a GeoJSON feature
// collection, for map overlays and exports.
func (ix *Index) DistrictGeoJSON(sel Selection) ([]byte, error) {
	units := ix.Units(sel)
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(units))}
	for _, u := range units {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: u.Geometry,
			Properties: map[string]any{
				"nmkec":  u.District,
				"kdkec":  u.DistrictCode,
				"nmdesa": u.Kelurahan,
				"nmsls":  u.SLSLabel,
			},
		})
	}
	return fc.MarshalJSON()
}

// Loader loads boundary indexes with an LRU+TTL cache in front, so repeated
// commands against the same boundary file skip the parse.
type Loader struct {
	cache *indexCache
}

// NewLoader builds a Loader whose cached indexes expire after ttl.
func NewLoader(ttl time.Duration) *Loader {
	return &Loader{cache: newIndexCache(8, ttl)}
}

// Load parses the boundary file at path, dispatching on its extension
// (.geojson/.json or .shp). Parsed indexes are cached by path.
func (l *Loader) Load(path string) (*Index, error) {
	if ix := l.cache.get(path); ix != nil {
		return ix, nil
	}

	var (
		ix  *Index
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		ix, err = LoadGeoJSON(path)
	case ".shp":
		ix, err = LoadShapefile(path)
	default:
		return nil, eris.Errorf("geo: unsupported boundary format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	l.cache.put(path, ix)
	return ix, nil
}

// ClearCache drops all cached boundary indexes.
func (l *Loader) ClearCache() { l.cache.clear() }

// CacheStats reports hit/miss statistics for the boundary cache.
func (l *Loader) CacheStats() CacheStats { return l.cache.stats() }
