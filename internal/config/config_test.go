package config

import (
	"os"
	"testing"
	"time"

	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// nolint:gocyclo // Test function complexity from multiple subtests and assertions
func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"SERVICE_NAME", "ENVIRONMENT", "GRPC_PORT", "HTTP_PORT",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
		"ACCURACY_CEILING_M", "SAMPLE_INTERVAL", "WORKERS",
		"CLOSURE_RULE", "EXIT_RADIUS_M", "NATS_URL", "REWARD_TIERS",
		"SESSION_IDLE_TTL", "POI_FILE",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
	}

	// Clean up after test
	defer func() {
		for key, val := range originalEnv {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}()

	unsetAll := func() {
		for _, key := range envVars {
			os.Unsetenv(key)
		}
	}

	t.Run("loads default values", func(t *testing.T) {
		unsetAll()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.ServiceName != "geo-session-engine" {
			t.Errorf("expected ServiceName 'geo-session-engine', got '%s'", cfg.ServiceName)
		}
		if cfg.GRPCPort != "50051" {
			t.Errorf("expected GRPCPort '50051', got '%s'", cfg.GRPCPort)
		}
		if cfg.AccuracyCeilingM != 50 {
			t.Errorf("expected AccuracyCeilingM 50, got %f", cfg.AccuracyCeilingM)
		}
		if cfg.SpeedCeilingMPS != 8.33 {
			t.Errorf("expected SpeedCeilingMPS 8.33, got %f", cfg.SpeedCeilingMPS)
		}
		if cfg.SampleInterval != 10*time.Second {
			t.Errorf("expected SampleInterval 10s, got %s", cfg.SampleInterval)
		}
		if cfg.BaselineTTL != 5*time.Minute {
			t.Errorf("expected BaselineTTL 5m, got %s", cfg.BaselineTTL)
		}
		if cfg.ClosureRule != ClosureReturn {
			t.Errorf("expected ClosureRule 'return', got '%s'", cfg.ClosureRule)
		}
		if cfg.NATSURL != "" {
			t.Errorf("expected NATS disabled by default, got '%s'", cfg.NATSURL)
		}
		if cfg.SessionIdleTTL != 30*time.Minute {
			t.Errorf("expected SessionIdleTTL 30m, got %s", cfg.SessionIdleTTL)
		}
		if cfg.POIFile != "" {
			t.Errorf("expected no POI file by default, got '%s'", cfg.POIFile)
		}
	})

	t.Run("loads custom values from environment", func(t *testing.T) {
		unsetAll()
		os.Setenv("SERVICE_NAME", "test-service")
		os.Setenv("GRPC_PORT", "9999")
		os.Setenv("ACCURACY_CEILING_M", "35")
		os.Setenv("SAMPLE_INTERVAL", "15s")
		os.Setenv("WORKERS", "2")
		os.Setenv("CLOSURE_RULE", "COUNT")
		os.Setenv("NATS_URL", "nats://localhost:4222")
		os.Setenv("SESSION_IDLE_TTL", "0s")
		os.Setenv("POI_FILE", "/etc/geosession/pois.geojson")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}

		if cfg.ServiceName != "test-service" {
			t.Errorf("expected ServiceName 'test-service', got '%s'", cfg.ServiceName)
		}
		if cfg.GRPCPort != "9999" {
			t.Errorf("expected GRPCPort '9999', got '%s'", cfg.GRPCPort)
		}
		if cfg.AccuracyCeilingM != 35 {
			t.Errorf("expected AccuracyCeilingM 35, got %f", cfg.AccuracyCeilingM)
		}
		if cfg.SampleInterval != 15*time.Second {
			t.Errorf("expected SampleInterval 15s, got %s", cfg.SampleInterval)
		}
		if cfg.Workers != 2 {
			t.Errorf("expected Workers 2, got %d", cfg.Workers)
		}
		if cfg.ClosureRule != ClosureCount {
			t.Errorf("expected ClosureRule 'count', got '%s'", cfg.ClosureRule)
		}
		if cfg.NATSURL != "nats://localhost:4222" {
			t.Errorf("expected NATSURL to be set, got '%s'", cfg.NATSURL)
		}
		if cfg.SessionIdleTTL != 0 {
			t.Errorf("expected SessionIdleTTL disabled, got %s", cfg.SessionIdleTTL)
		}
		if cfg.POIFile != "/etc/geosession/pois.geojson" {
			t.Errorf("expected POIFile to be set, got '%s'", cfg.POIFile)
		}
	})

	errorCases := map[string]string{
		"ACCURACY_CEILING_M": "invalid",
		"SAMPLE_INTERVAL":    "ten seconds",
		"WORKERS":            "0",
		"CLOSURE_RULE":       "spiral",
		"SESSION_IDLE_TTL":   "forever",
	}
	for key, value := range errorCases {
		t.Run("returns error for invalid "+key, func(t *testing.T) {
			unsetAll()
			os.Setenv(key, value)

			_, err := Load()
			if err == nil {
				t.Errorf("expected error for invalid %s, got nil", key)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "192.168.1.175",
		PostgresPort:     "6432",
		PostgresDB:       "geosession",
		PostgresUser:     "testuser",
		PostgresPassword: "testpass",
	}

	expected := "host=192.168.1.175 port=6432 dbname=geosession user=testuser password=testpass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("expected DSN '%s', got '%s'", expected, dsn)
	}
}

func TestEngineConfig(t *testing.T) {
	os.Unsetenv("CLOSURE_RULE")
	os.Unsetenv("EXIT_RADIUS_M")
	os.Unsetenv("REWARD_TIERS")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	ec := cfg.Engine()
	if err := ec.Validate(); err != nil {
		t.Fatalf("default engine config invalid: %v", err)
	}
	if ec.RewardGate.SpeedCeiling != 8.33 {
		t.Errorf("expected reward gate speed ceiling 8.33, got %f", ec.RewardGate.SpeedCeiling)
	}
	if got := ec.Territory.Requirement.Required(90); got != 8 {
		t.Errorf("expected 8 required points above 80 kg, got %d", got)
	}
	rule, ok := ec.Territory.Closure.(territory.ClosureOnReturn)
	if !ok || rule.Radius != 60 {
		t.Errorf("expected ClosureOnReturn with 60 m radius, got %#v", ec.Territory.Closure)
	}

	cfg.ClosureRule = ClosureCount
	if _, ok := cfg.Engine().Territory.Closure.(territory.ClosureOnCount); !ok {
		t.Errorf("expected ClosureOnCount")
	}

	cfg.ExitRadiusM = 80
	if err := cfg.Engine().Validate(); err == nil {
		t.Error("expected exit radius below enter radius to be rejected")
	}
}

func TestTiers(t *testing.T) {
	cfg := &Config{RewardTiers: "200,500,1000,2000,3000"}
	table, err := cfg.Tiers()
	if err != nil {
		t.Fatalf("Tiers() failed: %v", err)
	}
	if table.Len() != 5 {
		t.Errorf("expected 5 tiers, got %d", table.Len())
	}
	if tier, _ := table.Lookup(1); tier.Name != "Novice Explorer" {
		t.Errorf("expected default tier names, got '%s'", tier.Name)
	}

	cfg.RewardTiers = "100,50"
	if _, err := cfg.Tiers(); err == nil {
		t.Error("expected descending thresholds to be rejected")
	}
}
