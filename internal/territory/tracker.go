// Package territory implements the claim-territory state machine: it collects
// speed-validated fixes into a path, keeps a live area figure and closes the
// path into a ClaimedTerritory.
package territory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/stuartshay/geo-session-engine/internal/calculator"
	"github.com/stuartshay/geo-session-engine/internal/filter"
	"github.com/stuartshay/geo-session-engine/internal/gps"
)

// Tracker errors
var (
	ErrInvalidState       = errors.New("invalid tracking session state")
	ErrInsufficientPoints = errors.New("insufficient points to close territory")
	ErrInvalidClaim       = errors.New("territory claim rejected")
)

// Default claim policy values
const (
	DefaultMinSampleDistance = 10.0  // meters between path points
	DefaultMinPathLength     = 50.0  // meters walked before a claim is valid
	DefaultMinArea           = 100.0 // square meters enclosed before a claim is valid
)

// State is the lifecycle state of the tracker
type State int

// Tracker states
const (
	StateIdle State = iota
	StateTracking
	StateClosed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateClosed:
		return "closed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config holds the tracker policy
type Config struct {
	MinSampleDistance float64
	JumpCeiling       float64
	MinPathLength     float64
	MinArea           float64
	Requirement       PointRequirement
	Closure           ClosureRule
}

// DefaultConfig returns the standard claim policy
func DefaultConfig() Config {
	return Config{
		MinSampleDistance: DefaultMinSampleDistance,
		JumpCeiling:       filter.DefaultJumpCeiling,
		MinPathLength:     DefaultMinPathLength,
		MinArea:           DefaultMinArea,
		Requirement:       DefaultRequirement(),
		Closure:           DefaultClosureRule(),
	}
}

// Session is an in-progress claim
type Session struct {
	ID             uuid.UUID
	Path           []gps.Fix
	StartedAt      time.Time
	RequiredPoints int
}

// Claimed is a closed territory. It is never modified after creation. In JSON
// the boundary travels as a GeoJSON Polygon geometry under "boundary".
type Claimed struct {
	ID               uuid.UUID             `json:"id"`
	SessionID        uuid.UUID             `json:"session_id"`
	Centroid         calculator.Location   `json:"centroid"`
	AreaSquareMeters float64               `json:"area_square_meters"`
	AreaMethod       calculator.AreaMethod `json:"area_method"`
	VertexCount      int                   `json:"vertex_count"`
	Boundary         orb.Polygon           `json:"-"`
	PathLengthMeters float64               `json:"path_length_meters"`
	StartedAt        time.Time             `json:"started_at"`
	ClosedAt         time.Time             `json:"closed_at"`
}

// Tracker owns at most one tracking session. It is not safe for concurrent use.
type Tracker struct {
	cfg      Config
	state    State
	session  *Session
	loadKg   float64
	area     float64
	method   calculator.AreaMethod
	departed float64
}

// NewTracker creates an idle tracker. Missing policy fields fall back to defaults.
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.Requirement == nil {
		cfg.Requirement = def.Requirement
	}
	if cfg.Closure == nil {
		cfg.Closure = def.Closure
	}
	if cfg.JumpCeiling <= 0 {
		cfg.JumpCeiling = def.JumpCeiling
	}
	return &Tracker{cfg: cfg, state: StateIdle, method: calculator.AreaPlanar}
}

// State returns the lifecycle state
func (t *Tracker) State() State {
	return t.state
}

// Tracking reports whether a session is active
func (t *Tracker) Tracking() bool {
	return t.state == StateTracking
}

// Start opens a new session. current, when non-nil, becomes point 0.
func (t *Tracker) Start(now time.Time, current *gps.Fix) (Session, error) {
	if t.state == StateTracking {
		return Session{}, ErrInvalidState
	}

	t.session = &Session{
		ID:             uuid.New(),
		Path:           make([]gps.Fix, 0, 16),
		StartedAt:      now,
		RequiredPoints: t.cfg.Requirement.Required(t.loadKg),
	}
	if current != nil {
		t.session.Path = append(t.session.Path, *current)
	}
	t.state = StateTracking
	t.area, t.method = 0, calculator.AreaPlanar
	t.departed = 0

	return t.Session(), nil
}

// OnAcceptedFix offers a speed-validated fix. It returns the claimed territory
// when the fix closes the path.
func (t *Tracker) OnAcceptedFix(fix gps.Fix) (*Claimed, error) {
	if t.state != StateTracking {
		return nil, ErrInvalidState
	}

	path := t.session.Path
	if len(path) == 0 {
		t.appendPoint(fix)
		return nil, nil
	}

	step := path[len(path)-1].DistanceTo(fix)
	if step > t.cfg.JumpCeiling {
		return nil, nil
	}
	if step >= t.cfg.MinSampleDistance {
		t.appendPoint(fix)
	}

	check := closureCheck{
		path:     t.session.Path,
		current:  fix,
		required: t.session.RequiredPoints,
		departed: t.departed,
	}
	if t.cfg.Closure.closes(check) && t.validate() == nil {
		claimed := t.close(fix.Timestamp)
		return &claimed, nil
	}
	return nil, nil
}

// ForceClose closes the path now if it has enough points
func (t *Tracker) ForceClose(now time.Time) (Claimed, error) {
	if t.state != StateTracking {
		return Claimed{}, ErrInvalidState
	}
	n := len(t.session.Path)
	if n < t.session.RequiredPoints || n < 3 {
		return Claimed{}, ErrInsufficientPoints
	}
	if err := t.validate(); err != nil {
		return Claimed{}, err
	}
	return t.close(now), nil
}

// Cancel discards the active session
func (t *Tracker) Cancel() error {
	if t.state != StateTracking {
		return ErrInvalidState
	}
	t.session = nil
	t.area = 0
	t.state = StateCancelled
	return nil
}

// SetLoad records the carried load and recomputes the active requirement
func (t *Tracker) SetLoad(kg float64) {
	t.loadKg = kg
	if t.state == StateTracking {
		t.session.RequiredPoints = t.cfg.Requirement.Required(kg)
	}
}

// Load returns the last recorded load in kilograms
func (t *Tracker) Load() float64 {
	return t.loadKg
}

// RequiredPoints returns the point count the next claim needs
func (t *Tracker) RequiredPoints() int {
	if t.state == StateTracking {
		return t.session.RequiredPoints
	}
	return t.cfg.Requirement.Required(t.loadKg)
}

// Session returns a copy of the active session
func (t *Tracker) Session() Session {
	if t.session == nil {
		return Session{}
	}
	s := *t.session
	s.Path = append([]gps.Fix(nil), t.session.Path...)
	return s
}

// PointCount returns the number of points in the active path
func (t *Tracker) PointCount() int {
	if t.session == nil {
		return 0
	}
	return len(t.session.Path)
}

// LiveArea returns the area of the active path and the method used
func (t *Tracker) LiveArea() (float64, calculator.AreaMethod) {
	return t.area, t.method
}

// PathLength returns the walked length of the active path in meters
func (t *Tracker) PathLength() float64 {
	if t.session == nil {
		return 0
	}
	return calculator.PathLength(gps.Locations(t.session.Path))
}

func (t *Tracker) appendPoint(fix gps.Fix) {
	t.session.Path = append(t.session.Path, fix)
	t.area, t.method = liveArea(t.session.Path)
	if d := t.session.Path[0].DistanceTo(fix); d > t.departed {
		t.departed = d
	}
}

// validate applies the claim quality checks to the current path
func (t *Tracker) validate() error {
	locs := gps.Locations(t.session.Path)
	if walked := calculator.PathLength(locs); walked < t.cfg.MinPathLength {
		return fmt.Errorf("%w: walked %.1f m, need %.1f m", ErrInvalidClaim, walked, t.cfg.MinPathLength)
	}
	if t.area < t.cfg.MinArea {
		return fmt.Errorf("%w: area %.1f m2, need %.1f m2", ErrInvalidClaim, t.area, t.cfg.MinArea)
	}
	if calculator.PathSelfIntersects(locs) {
		return fmt.Errorf("%w: path crosses itself", ErrInvalidClaim)
	}
	return nil
}

func (t *Tracker) close(at time.Time) Claimed {
	locs := gps.Locations(t.session.Path)
	area, method := calculator.PolygonArea(locs)

	claimed := Claimed{
		ID:               uuid.New(),
		SessionID:        t.session.ID,
		Centroid:         calculator.Centroid(locs),
		AreaSquareMeters: area,
		AreaMethod:       method,
		VertexCount:      len(locs),
		Boundary:         orb.Polygon{calculator.Ring(locs)},
		PathLengthMeters: calculator.PathLength(locs),
		StartedAt:        t.session.StartedAt,
		ClosedAt:         at,
	}

	t.session = nil
	t.area = 0
	t.state = StateClosed
	return claimed
}
