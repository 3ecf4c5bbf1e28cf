package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/config"
	"github.com/bkd-mataram/padscan/internal/geo"
	"github.com/bkd-mataram/padscan/internal/imagery"
	"github.com/bkd-mataram/padscan/internal/landuse"
	"github.com/bkd-mataram/padscan/internal/parking"
	"github.com/bkd-mataram/padscan/internal/poi"
	"github.com/bkd-mataram/padscan/internal/store"
	"github.com/bkd-mataram/padscan/internal/streets"
)

// appEnv bundles the long-lived dependencies the commands share.
type appEnv struct {
	store  store.Store
	loader *geo.Loader
}

// initEnv opens the store and boundary loader from config.
func initEnv(ctx context.Context) (*appEnv, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	ttl := time.Duration(cfg.Boundary.CacheTTLMins) * time.Minute
	return &appEnv{store: st, loader: geo.NewLoader(ttl)}, nil
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// boundaries loads the configured SLS boundary file through the cache.
func (e *appEnv) boundaries() (*geo.Index, error) {
	return e.loader.Load(cfg.Boundary.Path)
}

// classifier builds the primary imagery classifier from config.
func classifier() *imagery.Client {
	return imagery.NewClient(imagery.ClientOptions{
		Endpoint:    cfg.Imagery.Endpoint,
		Timeout:     time.Duration(cfg.Imagery.TimeoutSecs) * time.Second,
		CloudMaxPct: int(cfg.Imagery.CloudMaxPct),
	})
}

// fallback returns the synthetic generator, or nil when demo mode is off.
func fallback() imagery.Classifier {
	if !cfg.Imagery.AllowSynthetic {
		return nil
	}
	return imagery.NewSynthetic(cfg.Imagery.SyntheticSeed)
}

func overpassOptions(c config.OverpassConfig) (url, agent string, timeout time.Duration, rpm, retries int) {
	return c.URL, c.UserAgent, time.Duration(c.TimeoutSecs) * time.Second, int(c.RequestsPerMin), c.MaxRetries
}

func poiClient() *poi.Client {
	url, agent, timeout, rpm, retries := overpassOptions(cfg.Overpass)
	return poi.NewClient(poi.ClientOptions{
		URL: url, UserAgent: agent, Timeout: timeout,
		RequestsPerMin: rpm, Retries: retries,
	})
}

func streetsClient() *streets.Client {
	url, agent, timeout, rpm, retries := overpassOptions(cfg.Overpass)
	return streets.NewClient(streets.ClientOptions{
		URL: url, UserAgent: agent, Timeout: timeout,
		RequestsPerMin: rpm, Retries: retries,
		Highways: cfg.Overpass.StreetHighways,
	})
}

// tariffs converts the config maps into the typed parking tariff tables.
func tariffs() parking.Tariffs {
	hourly := make(map[string]int64, len(cfg.Parking.HourlyTariff))
	for k, v := range cfg.Parking.HourlyTariff {
		hourly[k] = int64(v)
	}
	hours := make(map[string]int, len(cfg.Parking.HoursPerDay))
	for k, v := range cfg.Parking.HoursPerDay {
		hours[k] = int(v)
	}
	return parking.Tariffs{
		HourlyIDR:   hourly,
		Utilization: cfg.Parking.Utilization,
		HoursPerDay: hours,
	}
}

// rates converts the config maps into the typed NJOP and PBB tables.
func rates() landuse.Rates {
	njop := make(map[string]int64, len(cfg.Tax.NJOPZone))
	for k, v := range cfg.Tax.NJOPZone {
		njop[k] = int64(v)
	}
	return landuse.Rates{
		NJOPZoneIDR: njop,
		PBBRatePct:  cfg.Tax.PBBRate,
	}
}
