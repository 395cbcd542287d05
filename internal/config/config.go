// Package config provides application configuration management,
// loading settings from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/filter"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// Closure rule names accepted in CLOSURE_RULE
const (
	ClosureReturn = "return"
	ClosureCount  = "count"
)

// Config holds all configuration for the application
type Config struct {
	// Service configuration
	ServiceName string
	Environment string
	GRPCPort    string
	HTTPPort    string

	// Database configuration
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Event publishing, disabled when NATSURL is empty
	NATSURL    string
	NATSStream string

	// Session hosting
	Workers        int
	MailboxSize    int
	OutboxSize     int
	TickInterval   time.Duration
	SessionIdleTTL time.Duration

	// GeoJSON POI file upserted into the catalog at startup, optional
	POIFile string

	// Fix filtering
	AccuracyCeilingM float64
	JumpCeilingM     float64
	BaselineTTL      time.Duration

	// Speed gates
	TerritoryJumpCeilingM float64
	RewardJumpCeilingM    float64
	SampleInterval        time.Duration
	SpeedCeilingMPS       float64
	MinAccrualM           float64
	OverspeedGrace        time.Duration

	// Territory claims
	MinSampleDistanceM  float64
	MinPathLengthM      float64
	MinAreaM2           float64
	ClosureRadiusM      float64
	ClosureRule         string
	BaseRequiredPoints  int
	HeavyRequiredPoints int
	HeavyLoadKG         float64

	// Geofence
	EnterRadiusM float64
	ExitRadiusM  float64

	// Reward ladder thresholds in meters, comma separated
	RewardTiers string

	// OpenTelemetry configuration
	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "geo-session-engine"),
		Environment: getEnv("ENVIRONMENT", "development"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "geosession"),
		PostgresUser:     getEnv("POSTGRES_USER", "development"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "development"),

		NATSURL:    os.Getenv("NATS_URL"),
		NATSStream: getEnv("NATS_STREAM", "GEOSESSION_EVENTS"),

		POIFile: os.Getenv("POI_FILE"),

		ClosureRule: strings.ToLower(getEnv("CLOSURE_RULE", ClosureReturn)),
		RewardTiers: getEnv("REWARD_TIERS", "200,500,1000,2000,3000"),

		OTELEnabled:  strings.EqualFold(getEnv("OTEL_ENABLED", "false"), "true"),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	floats := []struct {
		key string
		def string
		dst *float64
	}{
		{"ACCURACY_CEILING_M", "50", &cfg.AccuracyCeilingM},
		{"JUMP_CEILING_M", "200", &cfg.JumpCeilingM},
		{"TERRITORY_JUMP_CEILING_M", "200", &cfg.TerritoryJumpCeilingM},
		{"REWARD_JUMP_CEILING_M", "200", &cfg.RewardJumpCeilingM},
		{"SPEED_CEILING_MPS", "8.33", &cfg.SpeedCeilingMPS},
		{"MIN_ACCRUAL_M", "3", &cfg.MinAccrualM},
		{"MIN_SAMPLE_DISTANCE_M", "10", &cfg.MinSampleDistanceM},
		{"MIN_PATH_LENGTH_M", "50", &cfg.MinPathLengthM},
		{"MIN_AREA_M2", "100", &cfg.MinAreaM2},
		{"CLOSURE_RADIUS_M", "60", &cfg.ClosureRadiusM},
		{"HEAVY_LOAD_KG", "80", &cfg.HeavyLoadKG},
		{"ENTER_RADIUS_M", "100", &cfg.EnterRadiusM},
		{"EXIT_RADIUS_M", "150", &cfg.ExitRadiusM},
		{"OTEL_SAMPLE_RATIO", "1", &cfg.OTELSampleRatio},
	}
	for _, f := range floats {
		v, err := parseFloat(f.key, f.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = v
	}

	ints := []struct {
		key string
		def string
		dst *int
	}{
		{"WORKERS", "8", &cfg.Workers},
		{"MAILBOX_SIZE", "100", &cfg.MailboxSize},
		{"OUTBOX_SIZE", "1024", &cfg.OutboxSize},
		{"BASE_REQUIRED_POINTS", "5", &cfg.BaseRequiredPoints},
		{"HEAVY_REQUIRED_POINTS", "8", &cfg.HeavyRequiredPoints},
	}
	for _, i := range ints {
		v, err := parseInt(i.key, i.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", i.key, err)
		}
		*i.dst = v
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SAMPLE_INTERVAL", "10s", &cfg.SampleInterval},
		{"OVERSPEED_GRACE", "10s", &cfg.OverspeedGrace},
		{"BASELINE_TTL", "5m", &cfg.BaselineTTL},
		{"TICK_INTERVAL", "5s", &cfg.TickInterval},
		{"SESSION_IDLE_TTL", "30m", &cfg.SessionIdleTTL},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.ClosureRule != ClosureReturn && cfg.ClosureRule != ClosureCount {
		return nil, fmt.Errorf("invalid CLOSURE_RULE %q: want %q or %q", cfg.ClosureRule, ClosureReturn, ClosureCount)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid WORKERS: must be at least 1, got %d", cfg.Workers)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresUser,
		c.PostgresPassword,
	)
}

// Engine converts the flat settings into the engine configuration
func (c *Config) Engine() engine.Config {
	gate := func(jumpCeiling float64) filter.GateConfig {
		return filter.GateConfig{
			SampleInterval: c.SampleInterval,
			JumpCeiling:    jumpCeiling,
			SpeedCeiling:   c.SpeedCeilingMPS,
			MinAccrual:     c.MinAccrualM,
			OverspeedGrace: c.OverspeedGrace,
		}
	}

	var closure territory.ClosureRule = territory.ClosureOnReturn{Radius: c.ClosureRadiusM}
	if c.ClosureRule == ClosureCount {
		closure = territory.ClosureOnCount{}
	}

	return engine.Config{
		AccuracyCeiling: c.AccuracyCeilingM,
		JumpCeiling:     c.JumpCeilingM,
		BaselineTTL:     c.BaselineTTL,
		TerritoryGate:   gate(c.TerritoryJumpCeilingM),
		RewardGate:      gate(c.RewardJumpCeilingM),
		Territory: territory.Config{
			MinSampleDistance: c.MinSampleDistanceM,
			JumpCeiling:       c.TerritoryJumpCeilingM,
			MinPathLength:     c.MinPathLengthM,
			MinArea:           c.MinAreaM2,
			Requirement: territory.LoadScaled{
				Base:         c.BaseRequiredPoints,
				Heavy:        c.HeavyRequiredPoints,
				HeavyAboveKg: c.HeavyLoadKG,
			},
			Closure: closure,
		},
		Geofence: geofence.Config{
			EnterRadius: c.EnterRadiusM,
			ExitRadius:  c.ExitRadiusM,
		},
	}
}

// Tiers parses REWARD_TIERS into a validated tier table
func (c *Config) Tiers() (*reward.Table, error) {
	tiers, err := reward.ParseTiers(c.RewardTiers)
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD_TIERS: %w", err)
	}
	// keep the named defaults when the thresholds match them
	defaults := reward.DefaultTiers()
	if len(tiers) == len(defaults) {
		same := true
		for i := range tiers {
			same = same && tiers[i].ThresholdMeters == defaults[i].ThresholdMeters
		}
		if same {
			tiers = defaults
		}
	}
	return reward.NewTable(tiers)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseFloat parses a float64 from an environment variable or default value
func parseFloat(key, defaultValue string) (float64, error) {
	value := getEnv(key, defaultValue)
	return strconv.ParseFloat(value, 64)
}

// parseInt parses an int from an environment variable or default value
func parseInt(key, defaultValue string) (int, error) {
	value := getEnv(key, defaultValue)
	return strconv.Atoi(value)
}

// parseDuration parses a time.Duration from an environment variable or default value
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnv(key, defaultValue)
	return time.ParseDuration(value)
}
