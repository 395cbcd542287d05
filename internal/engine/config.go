package engine

import (
	"fmt"
	"time"

	"github.com/stuartshay/geo-session-engine/internal/filter"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// DefaultBaselineTTL is how long the last good fix stays a jump reference
const DefaultBaselineTTL = 5 * time.Minute

// Config collects the thresholds of every component. Territory and reward
// sampling each have their own speed gate parameters.
type Config struct {
	AccuracyCeiling float64
	JumpCeiling     float64
	BaselineTTL     time.Duration
	TerritoryGate   filter.GateConfig
	RewardGate      filter.GateConfig
	Territory       territory.Config
	Geofence        geofence.Config
}

// DefaultConfig returns the standard game tuning
func DefaultConfig() Config {
	return Config{
		AccuracyCeiling: filter.DefaultAccuracyCeiling,
		JumpCeiling:     filter.DefaultJumpCeiling,
		BaselineTTL:     DefaultBaselineTTL,
		TerritoryGate:   filter.DefaultGateConfig(),
		RewardGate:      filter.DefaultGateConfig(),
		Territory:       territory.DefaultConfig(),
		Geofence:        geofence.DefaultConfig(),
	}
}

// Validate checks the values that would make a session misbehave
func (c Config) Validate() error {
	if c.AccuracyCeiling <= 0 {
		return fmt.Errorf("accuracy ceiling must be positive, got %f", c.AccuracyCeiling)
	}
	if c.JumpCeiling <= 0 {
		return fmt.Errorf("jump ceiling must be positive, got %f", c.JumpCeiling)
	}
	if c.BaselineTTL < 0 {
		return fmt.Errorf("baseline ttl must not be negative, got %s", c.BaselineTTL)
	}
	for name, g := range map[string]filter.GateConfig{"territory": c.TerritoryGate, "reward": c.RewardGate} {
		if g.SampleInterval <= 0 {
			return fmt.Errorf("%s gate: sample interval must be positive", name)
		}
		if g.SpeedCeiling <= 0 || g.JumpCeiling <= 0 {
			return fmt.Errorf("%s gate: speed and jump ceilings must be positive", name)
		}
		if g.MinAccrual < 0 || g.OverspeedGrace < 0 {
			return fmt.Errorf("%s gate: accrual floor and grace must not be negative", name)
		}
	}
	if c.Territory.MinSampleDistance < 0 {
		return fmt.Errorf("min sample distance must not be negative")
	}
	if err := c.Geofence.Validate(); err != nil {
		return fmt.Errorf("geofence: %w", err)
	}
	return nil
}
