// Package grpc implements the SessionService gRPC server: it routes every call
// to the player's session on the dispatcher and hands the resulting events to
// the outbox for persistence and publishing.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stuartshay/geo-session-engine/internal/database"
	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/metrics"
	"github.com/stuartshay/geo-session-engine/internal/queue"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
	"github.com/stuartshay/geo-session-engine/internal/tracing"
)

// LedgerLoader restores persisted reward progress for a new session
type LedgerLoader interface {
	LoadLedger(ctx context.Context, playerID string) (reward.Ledger, error)
}

// NewSessionFactory builds sessions wired to the outbox. When loader is non-nil
// the persisted ledger is restored before the first command runs.
func NewSessionFactory(cfg engine.Config, catalog *geofence.Catalog, tiers *reward.Table, loader LedgerLoader, outbox *Outbox) queue.SessionFactory {
	return func(ctx context.Context, playerID string) (*engine.Session, error) {
		opts := []engine.Option{engine.WithLogger(log.Logger)}
		if outbox != nil {
			opts = append(opts, engine.WithSink(outbox))
		}

		s, err := engine.NewSession(playerID, cfg, catalog, tiers, opts...)
		if err != nil {
			return nil, err
		}

		if loader != nil {
			ledger, err := loader.LoadLedger(ctx, playerID)
			if err != nil {
				return nil, fmt.Errorf("failed to load ledger: %w", err)
			}
			if err := s.RestoreLedger(ledger); err != nil {
				log.Warn().Err(err).Str("player_id", playerID).Msg("Discarding persisted ledger")
			}
		}
		return s, nil
	}
}

// TerritoryLister reads stored claims
type TerritoryLister interface {
	ListTerritories(ctx context.Context, playerID string, limit int) ([]database.TerritoryRecord, error)
}

// Server implements the SessionService gRPC server
type Server struct {
	dispatcher  *queue.Dispatcher
	outbox      *Outbox
	territories TerritoryLister
	tracer      trace.Tracer
}

// NewServer creates a new gRPC server instance. outbox and territories may be
// nil; without territories ListTerritories is unimplemented.
func NewServer(dispatcher *queue.Dispatcher, outbox *Outbox, territories TerritoryLister) *Server {
	return &Server{
		dispatcher:  dispatcher,
		outbox:      outbox,
		territories: territories,
		tracer:      tracing.Tracer(),
	}
}

// ReportFix runs one raw fix through the player's session
func (s *Server) ReportFix(ctx context.Context, req *ReportFixRequest) (*ReportFixResponse, error) {
	var resp ReportFixResponse
	err := s.handle(ctx, "ReportFix", req.PlayerID, func(sess *engine.Session) error {
		res := sess.OnFix(req.Fix)

		resp.Accepted = res.Accepted
		if res.Rejection != nil {
			resp.Rejection = res.Rejection.Error()
		}
		resp.RewardOutcome = res.Reward.Outcome.String()
		resp.TerritoryOutcome = res.Territory.Outcome.String()
		resp.Events = res.Events
		resp.Telemetry = sess.Telemetry()

		metrics.FixesTotal.WithLabelValues(fixOutcome(res)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tick evaluates buffered fixes whose checkpoint has passed
func (s *Server) Tick(ctx context.Context, req *TickRequest) (*EventsResponse, error) {
	var resp EventsResponse
	err := s.handle(ctx, "Tick", req.PlayerID, func(sess *engine.Session) error {
		res := sess.Tick(orNow(req.Now))
		resp.Events = res.Events
		resp.Telemetry = sess.Telemetry()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartTracking opens a territory claim at the last good fix
func (s *Server) StartTracking(ctx context.Context, req *StartTrackingRequest) (*StartTrackingResponse, error) {
	var resp StartTrackingResponse
	err := s.handle(ctx, "StartTracking", req.PlayerID, func(sess *engine.Session) error {
		session, err := sess.StartTracking(orNow(req.Now))
		if err != nil {
			return err
		}
		resp = StartTrackingResponse{
			SessionID:      session.ID.String(),
			StartedAt:      session.StartedAt,
			RequiredPoints: session.RequiredPoints,
			PathPoints:     len(session.Path),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelTracking discards the active claim
func (s *Server) CancelTracking(ctx context.Context, req *PlayerRequest) (*TelemetryResponse, error) {
	return s.telemetryCommand(ctx, "CancelTracking", req.PlayerID, func(sess *engine.Session) error {
		return sess.CancelTracking()
	})
}

// ForceClose closes the active claim without returning to the start
func (s *Server) ForceClose(ctx context.Context, req *ForceCloseRequest) (*EventsResponse, error) {
	var resp EventsResponse
	err := s.handle(ctx, "ForceClose", req.PlayerID, func(sess *engine.Session) error {
		ev, err := sess.ForceClose(orNow(req.Now))
		if err != nil {
			return err
		}
		resp.Events = []engine.Event{ev}
		resp.Telemetry = sess.Telemetry()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetLoad records the carried load
func (s *Server) SetLoad(ctx context.Context, req *SetLoadRequest) (*TelemetryResponse, error) {
	return s.telemetryCommand(ctx, "SetLoad", req.PlayerID, func(sess *engine.Session) error {
		return sess.SetLoad(req.LoadKg)
	})
}

// MarkInside applies an entry from the platform region monitor
func (s *Server) MarkInside(ctx context.Context, req *MarkInsideRequest) (*EventsResponse, error) {
	var resp EventsResponse
	err := s.handle(ctx, "MarkInside", req.PlayerID, func(sess *engine.Session) error {
		events, err := sess.MarkInside(req.POIID, orNow(req.At))
		if err != nil {
			return err
		}
		resp.Events = events
		resp.Telemetry = sess.Telemetry()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetDailyRewards clears the reward ledger
func (s *Server) ResetDailyRewards(ctx context.Context, req *PlayerRequest) (*TelemetryResponse, error) {
	return s.telemetryCommand(ctx, "ResetDailyRewards", req.PlayerID, func(sess *engine.Session) error {
		sess.ResetDailyRewards()
		return nil
	})
}

// GetTelemetry returns the UI snapshot
func (s *Server) GetTelemetry(ctx context.Context, req *PlayerRequest) (*TelemetryResponse, error) {
	return s.telemetryCommand(ctx, "GetTelemetry", req.PlayerID, func(*engine.Session) error {
		return nil
	})
}

// CreditDistance credits distance validated outside the session, such as an
// offline catch-up batch
func (s *Server) CreditDistance(ctx context.Context, req *CreditDistanceRequest) (*EventsResponse, error) {
	var resp EventsResponse
	err := s.handle(ctx, "CreditDistance", req.PlayerID, func(sess *engine.Session) error {
		events, err := sess.CreditDistance(req.Meters, orNow(req.At))
		if err != nil {
			return err
		}
		resp.Events = events
		resp.Telemetry = sess.Telemetry()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// EndSession returns the final telemetry and drops the player's session from
// memory. Reward progress is already persisted; an open claim is discarded.
func (s *Server) EndSession(ctx context.Context, req *PlayerRequest) (*TelemetryResponse, error) {
	resp, err := s.telemetryCommand(ctx, "EndSession", req.PlayerID, func(*engine.Session) error {
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.Forget(ctx, req.PlayerID); err != nil {
		return nil, toStatus(err)
	}
	metrics.SessionsActive.Set(float64(s.dispatcher.Sessions()))
	return resp, nil
}

// ListTerritories returns the player's stored claims, newest first
func (s *Server) ListTerritories(ctx context.Context, req *ListTerritoriesRequest) (*ListTerritoriesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.ListTerritories",
		trace.WithAttributes(tracing.AttrPlayerID.String(req.PlayerID)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.CommandDuration.WithLabelValues("ListTerritories").Observe(time.Since(start).Seconds())
	}()

	var err error
	switch {
	case s.territories == nil:
		err = status.Error(grpccodes.Unimplemented, "territory store is not configured")
	case req.PlayerID == "":
		err = status.Error(grpccodes.InvalidArgument, "player_id is required")
	case req.Limit < 0:
		err = status.Error(grpccodes.InvalidArgument, "limit must not be negative")
	}
	if err != nil {
		s.finish(span, "ListTerritories", req.PlayerID, err)
		return nil, err
	}

	records, err := s.territories.ListTerritories(ctx, req.PlayerID, req.Limit)
	if err != nil {
		err = toStatus(err)
		s.finish(span, "ListTerritories", req.PlayerID, err)
		return nil, err
	}

	resp := &ListTerritoriesResponse{Territories: make([]territory.Claimed, 0, len(records))}
	for _, r := range records {
		resp.Territories = append(resp.Territories, r.Claimed)
	}
	s.finish(span, "ListTerritories", req.PlayerID, nil)
	return resp, nil
}

// EvictIdle drops sessions that ran no command for ttl and returns how many
// were dropped. It is driven by the host ticker; ticks do not count as use.
func (s *Server) EvictIdle(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	evicted, err := s.dispatcher.EvictIdle(ctx, time.Now().Add(-ttl))
	if err != nil {
		log.Warn().Err(err).Int("evicted", len(evicted)).Msg("Idle session eviction interrupted")
	}
	if len(evicted) > 0 {
		metrics.SessionsEvicted.Add(float64(len(evicted)))
		log.Info().
			Int("evicted", len(evicted)).
			Dur("idle_ttl", ttl).
			Msg("Evicted idle sessions")
	}
	return len(evicted)
}

// TickAll ticks every hosted session. It is driven by the host ticker.
func (s *Server) TickAll(now time.Time) int {
	return s.dispatcher.Broadcast(func(sess *engine.Session) {
		s.persistLedger(sess, func() {
			res := sess.Tick(now)
			if res.Reward.Accrued() || res.Territory.Accrued() {
				metrics.FixesTotal.WithLabelValues("tick_accrued").Inc()
			}
		})
	})
}

// Shutdown gracefully shuts down the dispatcher and drains the outbox
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.dispatcher.Shutdown(timeout)
	if s.outbox != nil {
		if drainErr := s.outbox.Close(timeout); drainErr != nil {
			err = errors.Join(err, drainErr)
		}
	}
	return err
}

func (s *Server) telemetryCommand(ctx context.Context, method, playerID string, fn queue.CommandFunc) (*TelemetryResponse, error) {
	var resp TelemetryResponse
	err := s.handle(ctx, method, playerID, func(sess *engine.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		resp.Telemetry = sess.Telemetry()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// handle runs fn on the player's session inside a span and maps the error to a
// gRPC status
func (s *Server) handle(ctx context.Context, method, playerID string, fn queue.CommandFunc) error {
	ctx, span := s.tracer.Start(ctx, "SessionService."+method,
		trace.WithAttributes(tracing.AttrPlayerID.String(playerID)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.CommandDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	if playerID == "" {
		err := status.Error(grpccodes.InvalidArgument, "player_id is required")
		s.finish(span, method, playerID, err)
		return err
	}

	err := s.dispatcher.Do(ctx, playerID, func(sess *engine.Session) error {
		var cmdErr error
		s.persistLedger(sess, func() {
			cmdErr = fn(sess)
		})
		return cmdErr
	})
	if err != nil {
		err = toStatus(err)
	}
	s.finish(span, method, playerID, err)
	return err
}

func (s *Server) finish(span trace.Span, method, playerID string, err error) {
	code := status.Code(err)
	metrics.CommandsTotal.WithLabelValues(method, code.String()).Inc()

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	ev := log.Debug()
	if code == grpccodes.Internal || code == grpccodes.Unavailable {
		ev = log.Error()
	}
	ev.Err(err).
		Str("method", method).
		Str("player_id", playerID).
		Str("code", code.String()).
		Msg("Session command failed")
}

// persistLedger runs fn and queues the ledger when fn changed it
func (s *Server) persistLedger(sess *engine.Session, fn func()) {
	before := sess.Ledger()
	fn()
	if s.outbox == nil {
		return
	}
	after := sess.Ledger()
	if ledgerChanged(before, after) {
		s.outbox.SaveLedger(sess.PlayerID(), after)
	}
}

func ledgerChanged(a, b reward.Ledger) bool {
	if a.TotalValidatedDistanceMeters != b.TotalValidatedDistanceMeters {
		return true
	}
	if len(a.UnlockedTierIDs) != len(b.UnlockedTierIDs) {
		return true
	}
	for i := range a.UnlockedTierIDs {
		if a.UnlockedTierIDs[i] != b.UnlockedTierIDs[i] {
			return true
		}
	}
	return false
}

// fixOutcome labels a fix result for metrics
func fixOutcome(res engine.Result) string {
	switch {
	case errors.Is(res.Rejection, engine.ErrLowAccuracy):
		return "low_accuracy"
	case errors.Is(res.Rejection, engine.ErrJump):
		return "jump"
	case errors.Is(res.Rejection, engine.ErrStaleTimestamp):
		return "stale"
	case errors.Is(res.Rejection, engine.ErrOverspeed):
		return "overspeed"
	case res.Reward.Accrued() || res.Territory.Accrued():
		return "accrued"
	default:
		return "accepted"
	}
}


// toStatus maps engine and dispatcher errors onto gRPC status codes
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code grpccodes.Code
	switch {
	case errors.Is(err, engine.ErrInvalidSessionState),
		errors.Is(err, engine.ErrInsufficientPoints),
		errors.Is(err, territory.ErrInvalidClaim):
		code = grpccodes.FailedPrecondition
	case errors.Is(err, engine.ErrInvalidLoad), errors.Is(err, engine.ErrInvalidDistance):
		code = grpccodes.InvalidArgument
	case errors.Is(err, engine.ErrUnknownPOI):
		code = grpccodes.NotFound
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrShutdown):
		code = grpccodes.Unavailable
	case errors.Is(err, context.Canceled):
		code = grpccodes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = grpccodes.DeadlineExceeded
	default:
		code = grpccodes.Internal
	}
	return status.Error(code, err.Error())
}
