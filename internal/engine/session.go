// Package engine composes the fix filters, the territory tracker, the POI
// geofence and the reward ladder into one per-player session. A session does no
// I/O and starts no timers: the host feeds it fixes, ticks and commands from a
// single goroutine and forwards the events it returns.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartshay/geo-session-engine/internal/calculator"
	"github.com/stuartshay/geo-session-engine/internal/filter"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/gps"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// Result describes what one fix or tick did
type Result struct {
	Accepted  bool           // passed ordering, accuracy and jump checks
	Rejection error          // nil or one of the Err* rejections
	Reward    filter.Verdict // reward gate verdict
	Territory filter.Verdict // territory gate verdict
	Events    []Event
}

// Diagnostics counts per-fix outcomes since the session was created
type Diagnostics struct {
	Accepted        int `json:"accepted"`
	LowAccuracy     int `json:"low_accuracy"`
	Jump            int `json:"jump"`
	WindowJump      int `json:"window_jump"`
	Overspeed       int `json:"overspeed"`
	StaleTimestamp  int `json:"stale_timestamp"`
	BaselineExpired int `json:"baseline_expired"`
}

// Telemetry is a read-only snapshot for UI binding
type Telemetry struct {
	PlayerID             string                `json:"player_id"`
	TrackingState        string                `json:"tracking_state"`
	SessionID            string                `json:"session_id,omitempty"`
	PathPoints           int                   `json:"path_points"`
	RequiredPoints       int                   `json:"required_points"`
	LiveAreaSquareMeters float64               `json:"live_area_m2"`
	AreaMethod           calculator.AreaMethod `json:"area_method"`
	WalkedMeters         float64               `json:"walked_m"`
	AccruedMeters        float64               `json:"accrued_m"`
	UnlockedTierIDs      []uint32              `json:"unlocked_tier_ids"`
	NextTier             *reward.Tier          `json:"next_tier,omitempty"`
	DistanceToNextTier   float64               `json:"distance_to_next_tier_m"`
	InsidePOI            string                `json:"inside_poi,omitempty"`
	Suppressed           bool                  `json:"suppressed"`
	LoadKg               float64               `json:"load_kg"`
	Diagnostics          Diagnostics           `json:"diagnostics"`
}

// Option configures a Session
type Option func(*Session)

// WithSink pushes every event to sink as well as returning it
func WithSink(sink Sink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithLogger sets the session logger. Sessions are silent by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

// Session is the engine state of one player. It holds no locks and must be
// driven from a single goroutine.
type Session struct {
	playerID string
	cfg      Config

	accuracy      filter.AccuracyFilter
	jump          filter.JumpFilter
	rewardGate    *filter.SpeedGate
	territoryGate *filter.SpeedGate
	tracker       *territory.Tracker
	geofence      *geofence.Geofence
	ladder        *reward.Ladder

	lastGood *gps.Fix
	diag     Diagnostics
	sink     Sink
	log      zerolog.Logger
}

// NewSession creates a session over the shared POI catalog and tier table
func NewSession(playerID string, cfg Config, catalog *geofence.Catalog, tiers *reward.Table, opts ...Option) (*Session, error) {
	if playerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	fence, err := geofence.New(cfg.Geofence, catalog)
	if err != nil {
		return nil, err
	}

	s := &Session{
		playerID:      playerID,
		cfg:           cfg,
		accuracy:      filter.NewAccuracyFilter(cfg.AccuracyCeiling),
		jump:          filter.NewJumpFilter(cfg.JumpCeiling),
		rewardGate:    filter.NewSpeedGate(cfg.RewardGate),
		territoryGate: filter.NewSpeedGate(cfg.TerritoryGate),
		tracker:       territory.NewTracker(cfg.Territory),
		geofence:      fence,
		ladder:        reward.NewLadder(tiers),
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("player_id", playerID).Logger()

	return s, nil
}

// PlayerID returns the owning player
func (s *Session) PlayerID() string {
	return s.playerID
}

// OnFix runs one raw fix through the filters and every consumer
func (s *Session) OnFix(fix gps.Fix) Result {
	if s.lastGood != nil && fix.Timestamp.Before(s.lastGood.Timestamp) {
		s.diag.StaleTimestamp++
		return s.reject(fix, ErrStaleTimestamp)
	}
	if !s.accuracy.Accept(fix) {
		s.diag.LowAccuracy++
		return s.reject(fix, ErrLowAccuracy)
	}

	if s.lastGood != nil && s.cfg.BaselineTTL > 0 && fix.Timestamp.Sub(s.lastGood.Timestamp) > s.cfg.BaselineTTL {
		s.log.Debug().
			Time("baseline_at", s.lastGood.Timestamp).
			Msg("Jump baseline expired")
		s.lastGood = nil
		s.diag.BaselineExpired++
	}
	if !s.jump.Accept(s.lastGood, fix) {
		s.diag.Jump++
		return s.reject(fix, ErrJump)
	}

	good := fix
	s.lastGood = &good
	s.diag.Accepted++

	res := Result{Accepted: true}

	for _, tr := range s.geofence.Update(fix) {
		res.Events = append(res.Events, s.proximityEvent(tr))
	}

	res.Reward = s.rewardGate.Offer(fix)
	res.Events = append(res.Events, s.applyReward(res.Reward)...)

	res.Territory = s.territoryGate.Offer(fix)
	res.Events = append(res.Events, s.applyTerritory(res.Territory)...)

	s.judgeWindows(&res)
	s.emit(res.Events)
	return res
}

// Tick evaluates buffered fixes whose checkpoint boundary has passed
func (s *Session) Tick(now time.Time) Result {
	res := Result{
		Reward:    s.rewardGate.Tick(now),
		Territory: s.territoryGate.Tick(now),
	}
	res.Events = append(res.Events, s.applyReward(res.Reward)...)
	res.Events = append(res.Events, s.applyTerritory(res.Territory)...)

	s.judgeWindows(&res)
	s.emit(res.Events)
	return res
}

// judgeWindows counts gate intervals that discarded distance. A window jump
// keeps the fix accepted but is reported as ErrJump.
func (s *Session) judgeWindows(res *Result) {
	if res.Reward.Overspeed() || res.Territory.Overspeed() {
		s.diag.Overspeed++
		res.Rejection = ErrOverspeed
		s.log.Debug().
			Float64("reward_speed_mps", res.Reward.Speed).
			Float64("territory_speed_mps", res.Territory.Speed).
			Msg("Overspeed interval, distance not accrued")
	}
	if res.Reward.Outcome == filter.OutcomeJump || res.Territory.Outcome == filter.OutcomeJump {
		s.diag.WindowJump++
		if res.Rejection == nil {
			res.Rejection = ErrJump
		}
		s.log.Debug().
			Float64("reward_distance_m", res.Reward.Distance).
			Float64("territory_distance_m", res.Territory.Distance).
			Msg("Checkpoint interval too long, baseline reset")
	}
}

// StartTracking opens a territory claim at the last good fix
func (s *Session) StartTracking(now time.Time) (territory.Session, error) {
	session, err := s.tracker.Start(now, s.lastGood)
	if err != nil {
		return territory.Session{}, err
	}
	if s.lastGood != nil {
		s.territoryGate.Rebase(*s.lastGood)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("required_points", session.RequiredPoints).
		Msg("Territory tracking started")
	return session, nil
}

// CancelTracking discards the active claim
func (s *Session) CancelTracking() error {
	if err := s.tracker.Cancel(); err != nil {
		return err
	}
	s.log.Info().Msg("Territory tracking cancelled")
	return nil
}

// ForceClose closes the active claim without returning to the start
func (s *Session) ForceClose(now time.Time) (Event, error) {
	claimed, err := s.tracker.ForceClose(now)
	if err != nil {
		return Event{}, err
	}
	ev := s.territoryEvent(claimed)
	s.emit([]Event{ev})
	return ev, nil
}

// SetLoad updates the carried load used for the point requirement
func (s *Session) SetLoad(kg float64) error {
	if kg < 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
		return fmt.Errorf("%w: %f", ErrInvalidLoad, kg)
	}
	s.tracker.SetLoad(kg)
	return nil
}

// MarkInside applies an entry from the platform region monitor
func (s *Session) MarkInside(poiID string, at time.Time) ([]Event, error) {
	tr, err := s.geofence.MarkInside(poiID, at)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, nil
	}
	events := []Event{s.proximityEvent(*tr)}
	s.emit(events)
	return events, nil
}

// ResetDailyRewards clears the reward ledger
func (s *Session) ResetDailyRewards() {
	s.ladder.Reset()
	s.log.Info().Msg("Daily rewards reset")
}

// RestoreLedger loads persisted reward progress
func (s *Session) RestoreLedger(ledger reward.Ledger) error {
	return s.ladder.Restore(ledger)
}

// CreditDistance accrues distance validated outside the session, such as an
// offline catch-up batch. Zero credits nothing.
func (s *Session) CreditDistance(meters float64, at time.Time) ([]Event, error) {
	if meters < 0 || math.IsNaN(meters) || math.IsInf(meters, 0) {
		return nil, fmt.Errorf("%w: %f", ErrInvalidDistance, meters)
	}
	events := s.unlock(s.ladder.Accrue(meters), at)
	s.emit(events)
	s.log.Debug().
		Float64("credited_m", meters).
		Int("unlocked", len(events)).
		Msg("Distance credited")
	return events, nil
}

// Ledger returns the reward progress
func (s *Session) Ledger() reward.Ledger {
	return s.ladder.Ledger()
}

// Diagnostics returns the rejection counters
func (s *Session) Diagnostics() Diagnostics {
	return s.diag
}

// Telemetry returns the current UI snapshot
func (s *Session) Telemetry() Telemetry {
	area, method := s.tracker.LiveArea()
	ledger := s.ladder.Ledger()

	t := Telemetry{
		PlayerID:             s.playerID,
		TrackingState:        s.tracker.State().String(),
		PathPoints:           s.tracker.PointCount(),
		RequiredPoints:       s.tracker.RequiredPoints(),
		LiveAreaSquareMeters: area,
		AreaMethod:           method,
		WalkedMeters:         s.tracker.PathLength(),
		AccruedMeters:        ledger.TotalValidatedDistanceMeters,
		UnlockedTierIDs:      ledger.UnlockedTierIDs,
		DistanceToNextTier:   s.ladder.DistanceToNextTier(),
		Suppressed:           s.rewardGate.Suppressed() || s.territoryGate.Suppressed(),
		LoadKg:               s.tracker.Load(),
		Diagnostics:          s.diag,
	}
	if s.tracker.Tracking() {
		t.SessionID = s.tracker.Session().ID.String()
	}
	if next, ok := s.ladder.NextTier(); ok {
		t.NextTier = &next
	}
	if poi, ok := s.geofence.Inside(); ok {
		t.InsidePOI = poi.ID
	}
	return t
}

func (s *Session) reject(fix gps.Fix, reason error) Result {
	s.log.Debug().
		Err(reason).
		Float64("accuracy_m", fix.HorizontalAccuracy).
		Time("timestamp", fix.Timestamp).
		Msg("Fix rejected")
	return Result{Rejection: reason}
}

func (s *Session) applyReward(v filter.Verdict) []Event {
	if !v.Accrued() {
		return nil
	}
	return s.unlock(s.ladder.Accrue(v.Distance), v.To.Timestamp)
}

func (s *Session) applyTerritory(v filter.Verdict) []Event {
	if !v.Accrued() || !s.tracker.Tracking() {
		return nil
	}
	claimed, err := s.tracker.OnAcceptedFix(v.To)
	if err != nil || claimed == nil {
		return nil
	}
	return []Event{s.territoryEvent(*claimed)}
}

func (s *Session) unlock(tiers []reward.Tier, at time.Time) []Event {
	events := make([]Event, 0, len(tiers))
	for i := range tiers {
		tier := tiers[i]
		ev := newEvent(KindTierUnlocked, s.playerID, at)
		ev.Tier = &tier
		events = append(events, ev)

		s.log.Info().
			Uint32("tier_id", tier.ID).
			Float64("threshold_m", tier.ThresholdMeters).
			Msg("Reward tier unlocked")
	}
	return events
}

func (s *Session) territoryEvent(claimed territory.Claimed) Event {
	ev := newEvent(KindTerritoryClosed, s.playerID, claimed.ClosedAt)
	ev.Territory = &claimed

	s.log.Info().
		Str("territory_id", claimed.ID.String()).
		Float64("area_m2", claimed.AreaSquareMeters).
		Int("vertices", claimed.VertexCount).
		Msg("Territory closed")
	return ev
}

func (s *Session) proximityEvent(tr geofence.Transition) Event {
	kind := KindProximityEntered
	if tr.Kind == geofence.Exited {
		kind = KindProximityExited
	}
	ev := newEvent(kind, s.playerID, tr.At)
	poi := tr.POI
	ev.POI = &poi

	s.log.Debug().
		Str("poi_id", poi.ID).
		Str("kind", string(kind)).
		Float64("distance_m", tr.Distance).
		Msg("Proximity transition")
	return ev
}

func (s *Session) emit(events []Event) {
	if s.sink == nil {
		return
	}
	for _, e := range events {
		s.sink.Emit(e)
	}
}
