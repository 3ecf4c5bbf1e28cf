package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkd-mataram/padscan/internal/detect"
	geopkg "github.com/bkd-mataram/padscan/internal/geo"
	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/store"
)

func TestCacheClearEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sls.geojson")
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nmkec":"Ampenan","nmdesa":"BINTARO","nmsls":"SAWAH"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	loader := geopkg.NewLoader(time.Hour)
	first, err := loader.Load(path)
	require.NoError(t, err)

	api := &apiServer{env: &appEnv{loader: loader}}
	rec := httptest.NewRecorder()
	api.cacheClear(rec, httptest.NewRequest("POST", "/api/cache/clear", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Zero(t, loader.CacheStats().Entries)

	second, err := loader.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "cleared entries force a re-parse")
}

func TestRunSummaryEndpoint(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "padscan.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	run, err := st.CreateRun(ctx, revenue.CategoryParking, "AMPENAN")
	require.NoError(t, err)
	set := detect.NewSet([]detect.Detection{
		&detect.Parking{
			Base:          detect.Base{ID: "PKR-001", Lat: -8.55, Lon: 116.05, AreaM2: 300, Source: detect.SourcePOI},
			Type:          "umum",
			RevenueAnnual: 12_000_000,
		},
	})
	require.NoError(t, st.SaveDetections(ctx, run.ID, set))

	api := &apiServer{env: &appEnv{store: st, loader: geopkg.NewLoader(time.Hour)}}
	r := chi.NewRouter()
	r.Get("/api/runs/{id}/summary", api.runSummary)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/runs/"+run.ID+"/summary", nil))
	require.Equal(t, 200, rec.Code)

	var body map[string]revenue.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["summary"].Count)
	assert.Equal(t, 300.0, body["summary"].TotalAreaM2)
	assert.Equal(t, int64(12_000_000), body["summary"].TotalAnnualIDR)
	assert.Equal(t, 1, body["verified"].Count, "POI-sourced detections count as verified")
}
