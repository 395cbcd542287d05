package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// Rejections reported per fix, and control errors returned by Session methods
var (
	ErrLowAccuracy    = errors.New("fix rejected: low accuracy")
	ErrJump           = errors.New("fix rejected: jump")
	ErrOverspeed      = errors.New("fix rejected: overspeed")
	ErrStaleTimestamp = errors.New("fix rejected: stale timestamp")

	ErrInvalidSessionState = territory.ErrInvalidState
	ErrInsufficientPoints  = territory.ErrInsufficientPoints
	ErrUnknownPOI          = geofence.ErrUnknownPOI
	ErrInvalidLoad         = errors.New("invalid load")
	ErrInvalidDistance     = errors.New("invalid distance")
)

// EventKind names a gameplay event
type EventKind string

// Event kinds
const (
	KindTerritoryClosed  EventKind = "territory_closed"
	KindProximityEntered EventKind = "proximity_entered"
	KindProximityExited  EventKind = "proximity_exited"
	KindTierUnlocked     EventKind = "tier_unlocked"
)

// Event is emitted to collaborators (persistence, notifications, inventory).
// Exactly one of Territory, POI and Tier is set, matching Kind.
type Event struct {
	ID        uuid.UUID          `json:"id"`
	Kind      EventKind          `json:"kind"`
	PlayerID  string             `json:"player_id"`
	At        time.Time          `json:"at"`
	Territory *territory.Claimed `json:"territory,omitempty"`
	POI       *geofence.POI      `json:"poi,omitempty"`
	Tier      *reward.Tier       `json:"tier,omitempty"`
}

// Sink receives events as they are produced
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event)

// Emit implements Sink
func (f SinkFunc) Emit(e Event) {
	f(e)
}

func newEvent(kind EventKind, playerID string, at time.Time) Event {
	return Event{
		ID:       uuid.New(),
		Kind:     kind,
		PlayerID: playerID,
		At:       at,
	}
}
