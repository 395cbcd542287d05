package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stuartshay/geo-session-engine/internal/config"
	"github.com/stuartshay/geo-session-engine/internal/database"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	grpcserver "github.com/stuartshay/geo-session-engine/internal/grpc"
	"github.com/stuartshay/geo-session-engine/internal/metrics"
	"github.com/stuartshay/geo-session-engine/internal/natspub"
	"github.com/stuartshay/geo-session-engine/internal/queue"
	"github.com/stuartshay/geo-session-engine/internal/tracing"
)

var version = "dev"

func main() {
	// Initialize structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	log.Info().Str("version", version).Msg("Starting geo-session-engine service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	setLogLevel(cfg.LogLevel)

	log.Info().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("grpc_port", cfg.GRPCPort).
		Str("http_port", cfg.HTTPPort).
		Str("db_host", cfg.PostgresHost).
		Str("db_port", cfg.PostgresPort).
		Int("workers", cfg.Workers).
		Dur("session_idle_ttl", cfg.SessionIdleTTL).
		Bool("nats_enabled", cfg.NATSURL != "").
		Msg("Configuration loaded")

	// Initialize tracing
	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:      cfg.ServiceName,
		ServiceNamespace: "geosession",
		ServiceVersion:   version,
		Environment:      cfg.Environment,
		OTLPEndpoint:     cfg.OTELEndpoint,
		Enabled:          cfg.OTELEnabled,
		SampleRatio:      cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	// Engine configuration is validated before anything is started
	engineCfg := cfg.Engine()
	if err := engineCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid engine configuration")
	}
	tiers, err := cfg.Tiers()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reward tiers")
	}

	// Initialize database client
	dbClient, err := database.NewClient(cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database client")
	}
	defer dbClient.Close()

	log.Info().Msg("Database connection established")

	// Verify database connectivity and schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dbClient.HealthCheck(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database health check failed")
	}
	if err := dbClient.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	log.Info().Msg("Database health check passed")

	// Seed the catalog from a GeoJSON file when one is configured
	if cfg.POIFile != "" {
		n, err := seedPOIs(ctx, dbClient, cfg.POIFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.POIFile).Msg("Failed to seed POI catalog")
		}
		log.Info().Int("pois", n).Str("file", cfg.POIFile).Msg("POI catalog seeded")
	}

	// Load the POI catalog shared by every session
	pois, err := dbClient.ListPOIs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load POI catalog")
	}
	catalog, err := geofence.NewCatalog(pois)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid POI catalog")
	}

	log.Info().
		Int("pois", catalog.Len()).
		Int("tiers", tiers.Len()).
		Msg("Catalogs loaded")

	// Event publishing is optional
	var publisher grpcserver.Publisher
	var natsPublisher *natspub.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err = natspub.NewPublisher(cfg.NATSURL, cfg.NATSStream)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		publisher = natsPublisher
		log.Info().Str("stream", cfg.NATSStream).Msg("NATS JetStream publisher ready")
	}

	// Session hosting
	outbox := grpcserver.NewOutbox(cfg.OutboxSize, dbClient, publisher)
	factory := grpcserver.NewSessionFactory(engineCfg, catalog, tiers, dbClient, outbox)
	dispatcher := queue.NewDispatcher(cfg.Workers, cfg.MailboxSize, factory)
	sessionServer := grpcserver.NewServer(dispatcher, outbox, dbClient)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	grpcserver.RegisterSessionServiceServer(grpcServer, sessionServer)

	// Register health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcserver.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Start gRPC server
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create TCP listener")
	}

	go func() {
		log.Info().Str("port", cfg.GRPCPort).Msg("gRPC server listening")
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Start HTTP server for health checks and metrics
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           newHTTPHandler(cfg.ServiceName, dbClient),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Drive session checkpoints from the host clock
	tickerCtx, stopTicker := context.WithCancel(context.Background())
	go runTicker(tickerCtx, cfg.TickInterval, func(now time.Time) {
		sessionServer.TickAll(now)
		sessionServer.EvictIdle(tickerCtx, cfg.SessionIdleTTL)
		metrics.SessionsActive.Set(float64(dispatcher.Sessions()))
		metrics.UpdateDBPoolMetrics(dbClient.Stats())
	})

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutdown signal received, gracefully stopping...")
	healthServer.Shutdown()
	stopTicker()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop gRPC server
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	case <-stopped:
		log.Info().Msg("gRPC server stopped")
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown HTTP server")
	}

	// Shutdown session workers and drain pending writes
	if err := sessionServer.Shutdown(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown session service")
	}

	if natsPublisher != nil {
		natsPublisher.Close()
	}

	if err := shutdownTracer(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown tracer")
	}

	log.Info().Msg("Service shutdown complete")
}

// pinger reports backing store health
type pinger interface {
	HealthCheck(ctx context.Context) error
}

// newHTTPHandler serves liveness, readiness and Prometheus metrics
func newHTTPHandler(service string, db pinger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler(service))
	mux.HandleFunc("/readyz", readyHandler(service, db))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// healthHandler reports liveness
func healthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: service})
	}
}

// readyHandler reports readiness; it fails while the database is unreachable
func readyHandler(service string, db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:  "unavailable",
				Service: service,
				Error:   err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready", Service: service})
	}
}

// poiUpserter writes catalog entries
type poiUpserter interface {
	UpsertPOI(ctx context.Context, p geofence.POI) error
}

// seedPOIs upserts every POI in the GeoJSON file and returns how many were written
func seedPOIs(ctx context.Context, store poiUpserter, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	pois, err := geofence.ReadPOIs(file)
	if err != nil {
		return 0, err
	}
	// reject a bad file before touching the table
	if _, err := geofence.NewCatalog(pois); err != nil {
		return 0, err
	}

	for i, p := range pois {
		if err := store.UpsertPOI(ctx, p); err != nil {
			return i, err
		}
	}
	return len(pois), nil
}

// runTicker calls fn every interval until ctx is done
func runTicker(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}

// setLogLevel configures the global log level
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Info().Str("level", level).Msg("Log level set")
}
