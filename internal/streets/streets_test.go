package streets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bkd-mataram/padscan/internal/geo"
)

func unitSquare(kel, label string, minX, minY, maxX, maxY float64) *geo.AdministrativeUnit {
	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	})); err != nil {
		panic(err)
	}
	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return &geo.AdministrativeUnit{
		District:  "AMPENAN",
		Kelurahan: kel,
		SLSLabel:  label,
		Geometry:  mp,
	}
}

func TestDissolveGroupsFragments(t *testing.T) {
	ways := []Way{
		{OSMID: 1, Name: "Jalan Pejanggik", Coords: []geom.Coord{{0, 0}, {1, 0}}},
		{OSMID: 2, Name: "Jalan Pejanggik", Coords: []geom.Coord{{1, 0}, {2, 0}}},
		{OSMID: 3, Name: "Jalan Airlangga", Coords: []geom.Coord{{0, 1}, {1, 1}}},
		{OSMID: 4, Name: "Jalan Tanpa Nama", Coords: []geom.Coord{{5, 5}, {6, 6}}},
		{OSMID: 5, Name: "", Coords: []geom.Coord{{7, 7}, {8, 8}}},
		{OSMID: 6, Name: "Jalan Pendek", Coords: []geom.Coord{{9, 9}}}, // too short
	}

	streets := Dissolve(ways, "Jalan Tanpa Nama")
	require.Len(t, streets, 2)

	// Sorted by name, fragments merged into one multi-line geometry.
	assert.Equal(t, "Jalan Airlangga", streets[0].Name)
	assert.Equal(t, 1, streets[0].Geometry.NumLineStrings())
	assert.Equal(t, "Jalan Pejanggik", streets[1].Name)
	assert.Equal(t, 2, streets[1].Geometry.NumLineStrings())
}

func TestMapAttributesAndLinks(t *testing.T) {
	units := []*geo.AdministrativeUnit{
		unitSquare("BINTARO", "RT 001 LINGKUNGAN KARANG BARU", 116.0, -8.6, 116.2, -8.5),
	}
	streets := []Street{{
		Name: "Jalan Saleh Sungkar",
		Geometry: mustMLS([]float64{116.05, -8.55, 116.15, -8.55}),
	}}

	rows := NewMapper(95, 95).Map(streets, units)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "Jalan Saleh Sungkar", r.Name)
	assert.Equal(t, "BINTARO", r.Kelurahan)
	assert.Equal(t, "KARANG BARU", r.Lingkungan)
	assert.Equal(t, "RT 001 LINGKUNGAN KARANG BARU", r.SLS)
	assert.Equal(t, "100.0% (RT)", r.Coverage)
	assert.Equal(t, -8.55, r.Lat)
	assert.Equal(t, 116.1, r.Lon)
	assert.Equal(t, "https://www.google.com/maps?q=-8.55,116.1", r.GoogleMaps)
	assert.Equal(t, "https://cek-posisi-v2.streamlit.app/?coords=@-8.55,116.1", r.MatchaPro)
}

func TestMapDedupAndSort(t *testing.T) {
	units := []*geo.AdministrativeUnit{
		unitSquare("AMPENAN SELATAN", "RT 001 LINGKUNGAN GATEP", 0, 0, 10, 10),
	}
	streets := []Street{
		{Name: "Jalan B", Geometry: mustMLS([]float64{1, 1, 2, 1})},
		{Name: "Jalan A", Geometry: mustMLS([]float64{3, 3, 4, 3})},
		{Name: "Jalan B", Geometry: mustMLS([]float64{1, 1, 2, 1})},
	}

	rows := NewMapper(95, 95).Map(streets, units)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jalan A", rows[0].Name)
	assert.Equal(t, "Jalan B", rows[1].Name)
}

func TestMapNoBoundaryMatch(t *testing.T) {
	units := []*geo.AdministrativeUnit{
		unitSquare("BINTARO", "RT 001 LINGKUNGAN KARANG BARU", 0, 0, 1, 1),
	}
	streets := []Street{{Name: "Jalan Jauh", Geometry: mustMLS([]float64{50, 50, 51, 50})}}

	rows := NewMapper(95, 95).Map(streets, units)
	require.Len(t, rows, 1)
	assert.Equal(t, "-", rows[0].Kelurahan)
	assert.Equal(t, "-", rows[0].SLS)
	assert.Equal(t, "No match", rows[0].Coverage)
}

func mustMLS(flat []float64) *geom.MultiLineString {
	m := geom.NewMultiLineString(geom.XY)
	if err := m.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
		panic(err)
	}
	return m
}

const overpassWaysFixture = `{
  "elements": [
    {
      "type": "way",
      "id": 101,
      "geometry": [
        {"lat": -8.58, "lon": 116.10},
        {"lat": -8.58, "lon": 116.11}
      ],
      "tags": {"highway": "residential", "name": "Jalan Panca Usaha"}
    },
    {
      "type": "way",
      "id": 102,
      "geometry": [{"lat": -8.59, "lon": 116.12}],
      "tags": {"highway": "service"}
    },
    {"type": "node", "id": 103, "tags": {}}
  ]
}`

func TestParseWays(t *testing.T) {
	ways, err := parseWays([]byte(overpassWaysFixture))
	require.NoError(t, err)
	require.Len(t, ways, 1)

	assert.Equal(t, int64(101), ways[0].OSMID)
	assert.Equal(t, "Jalan Panca Usaha", ways[0].Name)
	assert.Equal(t, "residential", ways[0].Highway)
	require.Len(t, ways[0].Coords, 2)
	assert.Equal(t, 116.10, ways[0].Coords[0].X())
	assert.Equal(t, -8.58, ways[0].Coords[0].Y())
}

func TestNamedWaysQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostFormValue("data")
		w.Write([]byte(overpassWaysFixture))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, RequestsPerMin: 6000})
	ways, err := c.NamedWays(context.Background(), BBox{MinLat: -8.65, MinLon: 116.05, MaxLat: -8.52, MaxLon: 116.17})
	require.NoError(t, err)
	assert.Len(t, ways, 1)

	assert.Contains(t, gotQuery, `way["highway"~"`+DefaultHighways+`"]["name"]`)
	assert.Contains(t, gotQuery, "out geom;")
	assert.Contains(t, gotQuery, "-8.650000,116.050000,-8.520000,116.170000")
}
