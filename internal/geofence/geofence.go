// Package geofence tracks which POI, if any, a player is standing at. Entry and
// exit use different radii so a player hovering at the edge does not flap.
package geofence

import (
	"errors"
	"fmt"
	"time"

	"github.com/stuartshay/geo-session-engine/internal/gps"
)

// Default radii in meters
const (
	DefaultEnterRadius = 100.0
	DefaultExitRadius  = 150.0
)

// ErrUnknownPOI is returned when an id is not in the catalog
var ErrUnknownPOI = errors.New("unknown poi")

// Presence is the binary proximity state of one POI
type Presence int

// Presence values
const (
	Outside Presence = iota
	Inside
)

func (p Presence) String() string {
	if p == Inside {
		return "inside"
	}
	return "outside"
}

// ProximityState is the per-POI state of one player
type ProximityState struct {
	POIID            string
	State            Presence
	LastTransitionAt time.Time
}

// TransitionKind says which way a transition went
type TransitionKind int

// Transition kinds
const (
	Entered TransitionKind = iota
	Exited
)

// Transition is a single Outside/Inside flip
type Transition struct {
	Kind     TransitionKind
	POI      POI
	Distance float64 // meters, zero for region fallback entries
	At       time.Time
}

// Config holds the two radii
type Config struct {
	EnterRadius float64
	ExitRadius  float64
}

// DefaultConfig returns 100 m entry and 150 m exit
func DefaultConfig() Config {
	return Config{EnterRadius: DefaultEnterRadius, ExitRadius: DefaultExitRadius}
}

// Validate rejects radii that would make the state flap
func (c Config) Validate() error {
	if c.EnterRadius <= 0 {
		return fmt.Errorf("enter radius must be positive, got %f", c.EnterRadius)
	}
	if c.ExitRadius < c.EnterRadius {
		return fmt.Errorf("exit radius %f must not be smaller than enter radius %f", c.ExitRadius, c.EnterRadius)
	}
	return nil
}

// Geofence holds one player's proximity state. At most one POI is Inside at a
// time. A Geofence is not safe for concurrent use.
type Geofence struct {
	cfg     Config
	catalog *Catalog
	states  map[string]*ProximityState
	inside  string
}

// New creates a geofence over a shared catalog
func New(cfg Config, catalog *Catalog) (*Geofence, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = &Catalog{byID: map[string]int{}}
	}
	return &Geofence{
		cfg:     cfg,
		catalog: catalog,
		states:  make(map[string]*ProximityState),
	}, nil
}

// Update evaluates an accepted fix. An exit and a new entry can happen on the
// same fix; the exit comes first.
func (g *Geofence) Update(fix gps.Fix) []Transition {
	var out []Transition

	if g.inside != "" {
		poi, _ := g.catalog.Lookup(g.inside)
		d := poi.distanceTo(fix)
		if d <= g.cfg.ExitRadius {
			return nil
		}
		g.transition(poi.ID, Outside, fix.Timestamp)
		g.inside = ""
		out = append(out, Transition{Kind: Exited, POI: poi, Distance: d, At: fix.Timestamp})
	}

	best, bestDist := -1, 0.0
	for i, poi := range g.catalog.pois {
		d := poi.distanceTo(fix)
		if d <= g.cfg.EnterRadius && (best < 0 || d < bestDist) {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		poi := g.catalog.pois[best]
		g.transition(poi.ID, Inside, fix.Timestamp)
		g.inside = poi.ID
		out = append(out, Transition{Kind: Entered, POI: poi, Distance: bestDist, At: fix.Timestamp})
	}

	return out
}

// MarkInside applies an entry reported by the platform's region monitor. It is a
// no-op when the POI is already Inside or another POI holds the focus.
func (g *Geofence) MarkInside(id string, at time.Time) (*Transition, error) {
	poi, ok := g.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPOI, id)
	}
	if g.inside != "" {
		return nil, nil
	}

	g.transition(id, Inside, at)
	g.inside = id
	return &Transition{Kind: Entered, POI: poi, At: at}, nil
}

// Inside returns the POI currently Inside
func (g *Geofence) Inside() (POI, bool) {
	if g.inside == "" {
		return POI{}, false
	}
	return g.catalog.Lookup(g.inside)
}

// State returns the proximity state of one POI; unseen POIs are Outside
func (g *Geofence) State(id string) ProximityState {
	if s, ok := g.states[id]; ok {
		return *s
	}
	return ProximityState{POIID: id, State: Outside}
}

// Config returns the radii in use
func (g *Geofence) Config() Config {
	return g.cfg
}

func (g *Geofence) transition(id string, to Presence, at time.Time) {
	s, ok := g.states[id]
	if !ok {
		s = &ProximityState{POIID: id}
		g.states[id] = s
	}
	s.State = to
	s.LastTransitionAt = at
}
