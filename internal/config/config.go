package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Imagery   ImageryConfig   `yaml:"imagery" mapstructure:"imagery"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Parking   ParkingConfig   `yaml:"parking" mapstructure:"parking"`
	Tax       TaxConfig       `yaml:"tax" mapstructure:"tax"`
	Change    ChangeConfig    `yaml:"change" mapstructure:"change"`
	Targets   TargetConfig    `yaml:"targets" mapstructure:"targets"`
	Coverage  CoverageConfig  `yaml:"coverage" mapstructure:"coverage"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the analysis run database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BoundaryConfig configures the administrative boundary source.
type BoundaryConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	CacheTTLMins int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// OverpassConfig configures the OpenStreetMap Overpass API client.
type OverpassConfig struct {
	URL             string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerMin  float64 `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	StreetHighways  string  `yaml:"street_highways" mapstructure:"street_highways"`
	UnnamedFallback string  `yaml:"unnamed_fallback" mapstructure:"unnamed_fallback"`
}

// ImageryConfig configures the satellite classifier backend.
type ImageryConfig struct {
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CloudMaxPct    float64 `yaml:"cloud_max_pct" mapstructure:"cloud_max_pct"`
	SyntheticSeed  int64   `yaml:"synthetic_seed" mapstructure:"synthetic_seed"`
	AllowSynthetic bool    `yaml:"allow_synthetic" mapstructure:"allow_synthetic"`
}

// AnthropicConfig holds the change-verifier model settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ParkingConfig holds parking detection thresholds and tariff tables.
type ParkingConfig struct {
	MinAreaM2      float64            `yaml:"min_area_m2" mapstructure:"min_area_m2"`
	MaxAreaM2      float64            `yaml:"max_area_m2" mapstructure:"max_area_m2"`
	MinAspectRatio float64            `yaml:"min_aspect_ratio" mapstructure:"min_aspect_ratio"`
	HourlyTariff   map[string]float64 `yaml:"hourly_tariff" mapstructure:"hourly_tariff"`
	Utilization    map[string]float64 `yaml:"utilization" mapstructure:"utilization"`
	HoursPerDay    map[string]float64 `yaml:"hours_per_day" mapstructure:"hours_per_day"`
}

// TaxConfig holds NJOP zone values and PBB rates.
type TaxConfig struct {
	NJOPZone map[string]float64 `yaml:"njop_zone" mapstructure:"njop_zone"`
	PBBRate  map[string]float64 `yaml:"pbb_rate" mapstructure:"pbb_rate"`
}

// ChangeConfig holds land-use and building change thresholds.
type ChangeConfig struct {
	MinAreaM2         float64 `yaml:"min_area_m2" mapstructure:"min_area_m2"`
	MinConfidence     float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	BuildingMinAreaM2 float64 `yaml:"building_min_area_m2" mapstructure:"building_min_area_m2"`
}

// TargetConfig holds annual revenue targets for benchmarking (Rp).
type TargetConfig struct {
	Parking    float64 `yaml:"parking" mapstructure:"parking"`
	PBB        float64 `yaml:"pbb" mapstructure:"pbb"`
	LandChange float64 `yaml:"land_change" mapstructure:"land_change"`
}

// CoverageConfig holds the spatial attribution acceptance thresholds (percent).
type CoverageConfig struct {
	LingkunganPct float64 `yaml:"lingkungan_pct" mapstructure:"lingkungan_pct"`
	RTPct         float64 `yaml:"rt_pct" mapstructure:"rt_pct"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PADSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "padscan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("boundary.path", "5271sls.geojson")
	v.SetDefault("boundary.cache_ttl_mins", 60)

	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 90)
	v.SetDefault("overpass.requests_per_min", 10)
	v.SetDefault("overpass.max_retries", 3)
	v.SetDefault("overpass.user_agent", "padscan/1.0 (BKD Kota Mataram)")
	v.SetDefault("overpass.street_highways", "primary|secondary|tertiary|residential|service|unclassified|living_street|pedestrian|footway|path")
	v.SetDefault("overpass.unnamed_fallback", "Jalan Tanpa Nama")

	v.SetDefault("imagery.timeout_secs", 120)
	v.SetDefault("imagery.cloud_max_pct", 20)
	v.SetDefault("imagery.synthetic_seed", 42)
	v.SetDefault("imagery.allow_synthetic", true)

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)

	v.SetDefault("parking.min_area_m2", 100)
	v.SetDefault("parking.max_area_m2", 10000)
	v.SetDefault("parking.min_aspect_ratio", 0.3)
	v.SetDefault("parking.hourly_tariff", map[string]float64{
		"motor": 2000, "mobil": 5000, "bus": 10000,
	})
	v.SetDefault("parking.utilization", map[string]float64{
		"mall": 0.7, "pasar": 0.8, "perkantoran": 0.6, "hotel": 0.5, "umum": 0.4,
	})
	v.SetDefault("parking.hours_per_day", map[string]float64{
		"mall": 12, "pasar": 10, "perkantoran": 9, "hotel": 24, "umum": 12,
	})

	v.SetDefault("tax.njop_zone", map[string]float64{
		"pusat_kota": 3_000_000, "semi_pusat": 2_000_000, "pinggiran": 1_000_000, "rural": 500_000,
	})
	v.SetDefault("tax.pbb_rate", map[string]float64{
		"residential": 0.1, "commercial": 0.2, "industrial": 0.3, "mixed_use": 0.15,
	})

	v.SetDefault("change.min_area_m2", 50)
	v.SetDefault("change.min_confidence", 0.7)
	v.SetDefault("change.building_min_area_m2", 20)

	v.SetDefault("targets.parking", 5_000_000_000)
	v.SetDefault("targets.pbb", 50_000_000_000)
	v.SetDefault("targets.land_change", 2_000_000_000)

	v.SetDefault("coverage.lingkungan_pct", 95)
	v.SetDefault("coverage.rt_pct", 95)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
