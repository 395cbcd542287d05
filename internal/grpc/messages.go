package grpc

import (
	"time"

	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/gps"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// ReportFixRequest carries one raw platform fix
type ReportFixRequest struct {
	PlayerID string  `json:"player_id"`
	Fix      gps.Fix `json:"fix"`
}

// ReportFixResponse is the verdict for one fix
type ReportFixResponse struct {
	Accepted         bool             `json:"accepted"`
	Rejection        string           `json:"rejection,omitempty"`
	RewardOutcome    string           `json:"reward_outcome"`
	TerritoryOutcome string           `json:"territory_outcome"`
	Events           []engine.Event   `json:"events,omitempty"`
	Telemetry        engine.Telemetry `json:"telemetry"`
}

// TickRequest advances a player's checkpoint clock. A zero Now means the server clock.
type TickRequest struct {
	PlayerID string    `json:"player_id"`
	Now      time.Time `json:"now"`
}

// StartTrackingRequest opens a territory claim
type StartTrackingRequest struct {
	PlayerID string    `json:"player_id"`
	Now      time.Time `json:"now"`
}

// StartTrackingResponse describes the new claim session
type StartTrackingResponse struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	RequiredPoints int       `json:"required_points"`
	PathPoints     int       `json:"path_points"`
}

// ForceCloseRequest closes the active claim without returning to the start
type ForceCloseRequest struct {
	PlayerID string    `json:"player_id"`
	Now      time.Time `json:"now"`
}

// SetLoadRequest records the carried load
type SetLoadRequest struct {
	PlayerID string  `json:"player_id"`
	LoadKg   float64 `json:"load_kg"`
}

// MarkInsideRequest forwards an entry reported by the platform region monitor
type MarkInsideRequest struct {
	PlayerID string    `json:"player_id"`
	POIID    string    `json:"poi_id"`
	At       time.Time `json:"at"`
}

// CreditDistanceRequest credits distance validated outside the session
type CreditDistanceRequest struct {
	PlayerID string    `json:"player_id"`
	Meters   float64   `json:"meters"`
	At       time.Time `json:"at"`
}

// ListTerritoriesRequest pages through a player's stored claims
type ListTerritoriesRequest struct {
	PlayerID string `json:"player_id"`
	Limit    int    `json:"limit,omitempty"`
}

// ListTerritoriesResponse returns stored claims, newest first
type ListTerritoriesResponse struct {
	Territories []territory.Claimed `json:"territories"`
}

// PlayerRequest addresses a player with no other arguments
type PlayerRequest struct {
	PlayerID string `json:"player_id"`
}

// EventsResponse returns the events a command produced and the resulting telemetry
type EventsResponse struct {
	Events    []engine.Event   `json:"events,omitempty"`
	Telemetry engine.Telemetry `json:"telemetry"`
}

// TelemetryResponse returns a telemetry snapshot
type TelemetryResponse struct {
	Telemetry engine.Telemetry `json:"telemetry"`
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
