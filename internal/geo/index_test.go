package geo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *Index {
	return NewIndex([]*AdministrativeUnit{
		{District: "AMPENAN", Kelurahan: "BINTARO", SLSLabel: "RT 001 LINGKUNGAN KARANG BARU", Geometry: square(0, 0, 1, 1)},
		{District: "AMPENAN", Kelurahan: "BINTARO", SLSLabel: "RT 002 LINGKUNGAN KARANG BARU", Geometry: square(1, 0, 2, 1)},
		{District: "AMPENAN", Kelurahan: "BINTARO", SLSLabel: "RT 001 LINGKUNGAN PONDOK PRASI", Geometry: square(0, 1, 1, 2)},
		{District: "AMPENAN", Kelurahan: "AMPENAN TENGAH", SLSLabel: "SAWAH", Geometry: square(2, 0, 3, 1)},
		{District: "MATARAM", Kelurahan: "PAGESANGAN", SLSLabel: "RT 003 LINGKUNGAN PAGESANGAN BARAT", Geometry: square(10, 10, 11, 11)},
	})
}

func TestIndexListings(t *testing.T) {
	ix := testIndex()

	assert.Equal(t, []string{"AMPENAN TENGAH", "BINTARO"}, ix.Kelurahan("Ampenan"))
	assert.Equal(t, []string{"KARANG BARU", "PONDOK PRASI"}, ix.Lingkungan("AMPENAN", "BINTARO"))
	assert.Equal(t, []string{"RT 001", "RT 002"}, ix.RTs("AMPENAN", []string{"BINTARO"}, []string{"KARANG BARU"}))

	// A plain label acts as its own lingkungan.
	assert.Equal(t, []string{"SAWAH"}, ix.Lingkungan("AMPENAN", "AMPENAN TENGAH"))
	assert.Empty(t, ix.Kelurahan("SEKARBELA"))
}

func TestIndexSelectionNarrowing(t *testing.T) {
	ix := testIndex()

	all := ix.Units(Selection{})
	district := ix.Units(Selection{District: "AMPENAN"})
	kel := ix.Units(Selection{District: "AMPENAN", Kelurahan: []string{"BINTARO"}})
	ling := ix.Units(Selection{District: "AMPENAN", Kelurahan: []string{"BINTARO"}, Lingkungan: []string{"KARANG BARU"}})
	rt := ix.Units(Selection{District: "AMPENAN", Kelurahan: []string{"BINTARO"}, Lingkungan: []string{"KARANG BARU"}, RT: []string{"RT 001"}})

	// Each added filter can only shrink the result set.
	assert.Len(t, all, 5)
	assert.Len(t, district, 4)
	assert.Len(t, kel, 3)
	assert.Len(t, ling, 2)
	require.Len(t, rt, 1)
	assert.Equal(t, "RT 001 LINGKUNGAN KARANG BARU", rt[0].SLSLabel)

	// Multi-select unions within a level but still narrows against the parent.
	multi := ix.Units(Selection{District: "AMPENAN", Kelurahan: []string{"BINTARO", "AMPENAN TENGAH"}})
	assert.Len(t, multi, 4)
}

func TestIndexMergedGeometry(t *testing.T) {
	ix := testIndex()

	merged := ix.MergedGeometry(Selection{District: "AMPENAN", Kelurahan: []string{"BINTARO"}})
	require.NotNil(t, merged)
	assert.True(t, PointInMultiPolygon(merged, 0.5, 1.5), "covers PONDOK PRASI unit")
	assert.True(t, PointInMultiPolygon(merged, 1.5, 0.5), "covers RT 002 unit")
	assert.False(t, PointInMultiPolygon(merged, 2.5, 0.5), "excludes AMPENAN TENGAH")

	assert.Nil(t, ix.MergedGeometry(Selection{District: "SEKARBELA"}))
}

func TestIndexLocate(t *testing.T) {
	ix := testIndex()

	p, ok := ix.Locate(1.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, "AMPENAN", p.District)
	assert.Equal(t, "BINTARO", p.Kelurahan)
	assert.Equal(t, "KARANG BARU", p.Lingkungan)
	assert.Equal(t, "RT 002", p.RT)

	_, ok = ix.Locate(50, 50)
	assert.False(t, ok)
}

func TestIndexLocateSLS(t *testing.T) {
	ix := testIndex()

	kel, ling, ok := ix.LocateSLS("Ampenan", "RT 001 LINGKUNGAN PONDOK PRASI")
	require.True(t, ok)
	assert.Equal(t, "BINTARO", kel)
	assert.Equal(t, "PONDOK PRASI", ling)

	// Plain labels act as their own lingkungan.
	kel, ling, ok = ix.LocateSLS("AMPENAN", "SAWAH")
	require.True(t, ok)
	assert.Equal(t, "AMPENAN TENGAH", kel)
	assert.Equal(t, "SAWAH", ling)

	_, _, ok = ix.LocateSLS("MATARAM", "SAWAH")
	assert.False(t, ok)
}

func TestLoadGeoJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sls.geojson")
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {
	      "type": "Feature",
	      "properties": {"nmkec": "Ampenan", "kdkec": "010", "nmdesa": "BINTARO", "nmsls": "RT 001 LINGKUNGAN KARANG BARU"},
	      "geometry": {"type": "Polygon", "coordinates": [[[116.07, -8.56], [116.08, -8.56], [116.08, -8.55], [116.07, -8.55], [116.07, -8.56]]]}
	    },
	    {
	      "type": "Feature",
	      "properties": {"nmkec": "Ampenan", "nmdesa": "BINTARO"},
	      "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]}
	    }
	  ]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	ix, err := LoadGeoJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len(), "feature without nmsls is skipped")

	p, ok := ix.Locate(116.075, -8.555)
	require.True(t, ok)
	assert.Equal(t, "AMPENAN", p.District)
	assert.Equal(t, "RT 001", p.RT)
}

func TestLoadGeoJSONErrors(t *testing.T) {
	_, err := LoadGeoJSON(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	_, err = LoadGeoJSON(path)
	assert.ErrorContains(t, err, "no usable SLS features")
}

func TestLoaderCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sls.geojson")
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nmkec":"Ampenan","nmdesa":"BINTARO","nmsls":"SAWAH"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	loader := NewLoader(time.Hour)

	first, err := loader.Load(path)
	require.NoError(t, err)
	second, err := loader.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second, "second load is served from cache")

	stats := loader.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	loader.ClearCache()
	third, err := loader.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third, "cleared cache forces a re-parse")
}

func TestLoaderUnsupportedFormat(t *testing.T) {
	loader := NewLoader(time.Hour)
	_, err := loader.Load("boundaries.kml")
	assert.ErrorContains(t, err, "unsupported boundary format")
}
