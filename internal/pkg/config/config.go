package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/samirrijal/breadcrumbs/internal/core/trail"
	"github.com/samirrijal/breadcrumbs/internal/pkg/geospatial"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Trail     TrailConfig     `mapstructure:"trail"`
	GTFSRT    GTFSRTConfig    `mapstructure:"gtfsrt"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr       string `mapstructure:"addr"`
	Enabled    bool   `mapstructure:"enabled"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// TrailConfig tunes simplification and the segment index.
type TrailConfig struct {
	SourceID       string        `mapstructure:"source_id"`
	MinDistanceM   float64       `mapstructure:"min_distance_m"`
	MaxInterval    time.Duration `mapstructure:"max_interval"`
	NodeCapacity   int           `mapstructure:"node_capacity"`
	MergeThreshold int           `mapstructure:"merge_threshold"`
	Projection     string        `mapstructure:"projection"`
}

// GTFSRTConfig points the realtime poller at one vehicle of a feed.
type GTFSRTConfig struct {
	VehiclePositionsURL string        `mapstructure:"vehicle_positions_url" validate:"omitempty,url"`
	VehicleID           string        `mapstructure:"vehicle_id"`
	PollInterval        time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("valkey.ttl_seconds", 30)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("trail.source_id", "default")
	v.SetDefault("trail.min_distance_m", trail.DefaultMinDistance)
	v.SetDefault("trail.max_interval", trail.DefaultMaxInterval)
	v.SetDefault("trail.node_capacity", trail.DefaultNodeCapacity)
	v.SetDefault("trail.merge_threshold", trail.DefaultMergeThreshold)
	v.SetDefault("trail.projection", "identity")
	v.SetDefault("gtfsrt.poll_interval", 30*time.Second)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BREADCRUMBS_TRAIL_MIN_DISTANCE_M → trail.min_distance_m
	v.SetEnvPrefix("BREADCRUMBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}
	if c.Trail.SourceID == "" {
		errs = append(errs, "trail.source_id is required")
	}
	if c.Trail.MinDistanceM < 0 {
		errs = append(errs, fmt.Sprintf("trail.min_distance_m must not be negative, got %v", c.Trail.MinDistanceM))
	}
	if c.Trail.MaxInterval < 0 {
		errs = append(errs, fmt.Sprintf("trail.max_interval must not be negative, got %s", c.Trail.MaxInterval))
	}
	if c.Trail.NodeCapacity < 2 {
		errs = append(errs, fmt.Sprintf("trail.node_capacity must be at least 2, got %d", c.Trail.NodeCapacity))
	}
	if c.Trail.MergeThreshold < 1 {
		errs = append(errs, fmt.Sprintf("trail.merge_threshold must be positive, got %d", c.Trail.MergeThreshold))
	}
	if _, err := geospatial.ProjectionByName(c.Trail.Projection); err != nil {
		errs = append(errs, "trail.projection: "+err.Error())
	}

	if err := validator.New().Struct(c.GTFSRT); err != nil {
		errs = append(errs, "gtfsrt: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TrailOptions builds trail options from the trail section.
func (c *Config) TrailOptions() (trail.Options, error) {
	project, err := geospatial.ProjectionByName(c.Trail.Projection)
	if err != nil {
		return trail.Options{}, err
	}
	opts := trail.DefaultOptions()
	opts.Policy = trail.DistanceTimePolicy{
		MinDistance: c.Trail.MinDistanceM,
		MaxInterval: c.Trail.MaxInterval,
	}
	opts.Projector = trail.ProjectorFunc(project)
	opts.NodeCapacity = c.Trail.NodeCapacity
	opts.MergeThreshold = c.Trail.MergeThreshold
	return opts, nil
}
