package imagery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassNames(t *testing.T) {
	assert.Equal(t, "built", ClassName(6))
	assert.Equal(t, "unknown", ClassName(99))

	assert.Equal(t, "vegetation", Simplify("trees"))
	assert.Equal(t, "vegetation", Simplify("shrub_and_scrub"))
	assert.Equal(t, "bare", Simplify("snow_and_ice"))
	assert.Equal(t, "built", Simplify("built"))
	assert.Equal(t, "unknown", Simplify("lava"))
}

func TestSyntheticDeterminism(t *testing.T) {
	region := Region{CenterLon: 116.1167, CenterLat: -8.5833, RadiusM: 2000}

	a, err := NewSynthetic(42).ParkingCandidates(context.Background(), region, 2025)
	require.NoError(t, err)
	b, err := NewSynthetic(42).ParkingCandidates(context.Background(), region, 2025)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same seed reproduces the same candidates")
	assert.GreaterOrEqual(t, len(a), 10)
	assert.LessOrEqual(t, len(a), 15)

	for _, f := range a {
		assert.InDelta(t, region.CenterLat, f.Lat, 0.011)
		assert.InDelta(t, region.CenterLon, f.Lon, 0.011)
		assert.GreaterOrEqual(t, f.AreaM2, 150.0)
		assert.LessOrEqual(t, f.AreaM2, 2000.0)
		assert.Len(t, f.Footprint, 4)
	}
}

func TestSyntheticVariesByRegionAndYear(t *testing.T) {
	ampenan := Region{CenterLon: 116.0782, CenterLat: -8.5615, RadiusM: 2000}
	cakranegara := Region{CenterLon: 116.1448, CenterLat: -8.5897, RadiusM: 2000}
	gen := NewSynthetic(42)

	base, err := gen.ParkingCandidates(context.Background(), ampenan, 2025)
	require.NoError(t, err)
	otherRegion, err := gen.ParkingCandidates(context.Background(), cakranegara, 2025)
	require.NoError(t, err)
	otherYear, err := gen.ParkingCandidates(context.Background(), ampenan, 2024)
	require.NoError(t, err)

	assert.NotEqual(t, base, otherRegion, "districts get distinct demo layouts")
	assert.NotEqual(t, base, otherYear, "years get distinct demo layouts")
}

func TestSyntheticLandChanges(t *testing.T) {
	region := Region{CenterLon: 116.1167, CenterLat: -8.5833, RadiusM: 2000}
	changes, err := NewSynthetic(42).LandChanges(context.Background(), region, 2023, 2025)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(changes), 8)
	assert.LessOrEqual(t, len(changes), 12)
	for _, c := range changes {
		assert.NotEmpty(t, c.FromClass)
		assert.NotEmpty(t, c.ToClass)
		assert.NotEqual(t, c.FromClass, c.ToClass)
	}
}

func TestSyntheticBuildingDeltas(t *testing.T) {
	region := Region{CenterLon: 116.1167, CenterLat: -8.5833, RadiusM: 2000}
	deltas, err := NewSynthetic(42).BuildingDeltas(context.Background(), region, 2023, 2025)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(deltas), 10)
	for _, d := range deltas {
		assert.Greater(t, d.AreaAfterM2, d.AreaBeforeM2, "every synthetic delta is an expansion")
		assert.GreaterOrEqual(t, d.HeightAfterM, d.HeightBeforeM)
	}
}

func TestClientParkingCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/parking", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 2000, req["radius_m"])
		assert.EqualValues(t, 20, req["cloud_max_pct"])

		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{
				{"lon": 116.11, "lat": -8.58, "area_m2": 450.5, "confidence": 0.82},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL, CloudMaxPct: 20, Timeout: 5 * time.Second})
	features, err := c.ParkingCandidates(context.Background(), Region{CenterLon: 116.1167, CenterLat: -8.5833, RadiusM: 2000}, 2025)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, 450.5, features[0].AreaM2)
}

func TestClientUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 means no scene",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "empty feature set means no scene",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"features":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(ClientOptions{Endpoint: srv.URL, Timeout: 5 * time.Second})
			_, err := c.ParkingCandidates(context.Background(), Region{}, 2025)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestClientNoEndpoint(t *testing.T) {
	c := NewClient(ClientOptions{})
	_, err := c.LandChanges(context.Background(), Region{}, 2023, 2025)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"changes":[{"lon":1,"lat":1,"area_m2":300,"from_class":"vegetation","to_class":"built"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL, Timeout: 5 * time.Second, Retries: 3})
	changes, err := c.LandChanges(context.Background(), Region{}, 2023, 2025)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "built", changes[0].ToClass)
	assert.Equal(t, int64(2), calls.Load())
}
