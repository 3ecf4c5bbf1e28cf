// Package streets builds the street-to-SLS reference table: fetch named roads
// from OpenStreetMap, merge fragmented ways into one street per name, and
// attribute each street to its administrative unit by line coverage.
package streets

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/bkd-mataram/padscan/internal/geo"
)

// Way is one OSM highway way before dissolving.
type Way struct {
	OSMID   int64
	Name    string
	Highway string
	Coords  []geom.Coord // lon/lat pairs
}

// Street is a named street after dissolving fragmented ways.
type Street struct {
	Name     string
	Geometry *geom.MultiLineString
}

// Row is one line of the street reference table.
type Row struct {
	Name       string  `json:"name"`
	SLS        string  `json:"sls"`
	Lingkungan string  `json:"lingkungan"`
	Kelurahan  string  `json:"kelurahan"`
	Coverage   string  `json:"coverage"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	GoogleMaps string  `json:"google_maps_link"`
	MatchaPro  string  `json:"matchapro_link"`
}

// Dissolve groups ways by street name into one geometry per street. Ways
// carrying the unnamed fallback (or no name at all) are dropped first, so a
// city's worth of anonymous service roads does not collapse into one giant
// pseudo-street.
func Dissolve(ways []Way, unnamedFallback string) []Street {
	grouped := make(map[string][][]geom.Coord)
	var order []string
	for _, w := range ways {
		if w.Name == "" || w.Name == unnamedFallback || len(w.Coords) < 2 {
			continue
		}
		if _, seen := grouped[w.Name]; !seen {
			order = append(order, w.Name)
		}
		grouped[w.Name] = append(grouped[w.Name], w.Coords)
	}

	sort.Strings(order)
	streets := make([]Street, 0, len(order))
	for _, name := range order {
		mls := geom.NewMultiLineString(geom.XY)
		for _, coords := range grouped[name] {
			flat := make([]float64, 0, len(coords)*2)
			for _, c := range coords {
				flat = append(flat, c.X(), c.Y())
			}
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
				continue
			}
		}
		streets = append(streets, Street{Name: name, Geometry: mls})
	}
	return streets
}

// Mapper attributes streets to administrative units.
type Mapper struct {
	attr *geo.Attributor
}

// NewMapper builds a Mapper with the given coverage thresholds (percent).
func NewMapper(lingkunganPct, rtPct float64) *Mapper {
	return &Mapper{attr: geo.NewAttributor(lingkunganPct, rtPct)}
}

// Map builds the reference table for the given streets against the full
// boundary set. The full set, not just the requested district, so border
// streets still resolve. Rows are deduplicated by (name, SLS) and sorted by
// kelurahan, lingkungan, then street name.
func (m *Mapper) Map(streets []Street, units []*geo.AdministrativeUnit) []Row {
	rows := make([]Row, 0, len(streets))
	seen := make(map[[2]string]bool)

	for _, st := range streets {
		att := m.attr.Attribute(st.Geometry, units)
		lat, lon := lineCentroid(st.Geometry)
		lat, lon = round6(lat), round6(lon)

		key := [2]string{st.Name, att.SLS}
		if seen[key] {
			continue
		}
		seen[key] = true

		rows = append(rows, Row{
			Name:       st.Name,
			SLS:        att.SLS,
			Lingkungan: att.Lingkungan,
			Kelurahan:  att.Kelurahan,
			Coverage:   att.Coverage,
			Lat:        lat,
			Lon:        lon,
			GoogleMaps: fmt.Sprintf("https://www.google.com/maps?q=%v,%v", lat, lon),
			MatchaPro:  fmt.Sprintf("https://cek-posisi-v2.streamlit.app/?coords=@%v,%v", lat, lon),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Kelurahan != rows[j].Kelurahan {
			return rows[i].Kelurahan < rows[j].Kelurahan
		}
		if rows[i].Lingkungan != rows[j].Lingkungan {
			return rows[i].Lingkungan < rows[j].Lingkungan
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// lineCentroid averages the vertices of all member linestrings.
func lineCentroid(mls *geom.MultiLineString) (lat, lon float64) {
	var sx, sy float64
	var n int
	for i := 0; i < mls.NumLineStrings(); i++ {
		ls := mls.LineString(i)
		for j := 0; j < ls.NumCoords(); j++ {
			c := ls.Coord(j)
			sx += c.X()
			sy += c.Y()
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sy / float64(n), sx / float64(n)
}

func round6(v float64) float64 {
	const scale = 1e6
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
