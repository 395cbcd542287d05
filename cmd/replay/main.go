package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/geo-session-engine/internal/config"
	"github.com/stuartshay/geo-session-engine/internal/database"
	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/gps"
	"github.com/stuartshay/geo-session-engine/internal/replay"
)

func main() {
	var (
		csvFile  = flag.String("csv", "", "Input CSV fix log (timestamp,latitude,longitude,accuracy)")
		date     = flag.String("date", "", "Replay stored locations for a date (YYYY-MM-DD) instead of a CSV file")
		device   = flag.String("device", "", "Device filter for -date")
		poiFile  = flag.String("pois", "", "GeoJSON FeatureCollection of POI points (default: database catalog with -date, none otherwise)")
		outFile  = flag.String("out", "", "Output CSV report (default: stdout)")
		player   = flag.String("player", "replay", "Player ID for emitted events")
		track    = flag.Bool("track", false, "Start a territory claim at the first accepted fix")
		loadKg   = flag.Float64("load", 0, "Carried load in kg")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "replay - run a recorded walk through the session engine\n\n")
		fmt.Fprintf(os.Stderr, "usage: replay -csv walk.csv [-track] [-load 10] [-pois pois.geojson] [-out report.csv]\n")
		fmt.Fprintf(os.Stderr, "       replay -date 2026-01-24 [-device iphone] [-track]\n\n")
		fmt.Fprintf(os.Stderr, "options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	setLogLevel(*logLevel)

	if (*csvFile == "") == (*date == "") {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	engineCfg := cfg.Engine()
	if err := engineCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid engine configuration")
	}
	tiers, err := cfg.Tiers()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid reward tiers")
	}

	var (
		fixes []gps.Fix
		pois  []geofence.POI
	)

	if *poiFile != "" {
		pois, err = readFile(*poiFile, geofence.ReadPOIs)
		if err != nil {
			log.Fatal().Err(err).Str("file", *poiFile).Msg("Failed to read POIs")
		}
	}

	if *csvFile != "" {
		fixes, err = readFile(*csvFile, replay.ReadFixes)
		if err != nil {
			log.Fatal().Err(err).Str("file", *csvFile).Msg("Failed to read fix log")
		}
	} else {
		fixes, pois, err = loadFromDatabase(cfg, *date, *device, pois)
		if err != nil {
			log.Fatal().Err(err).Str("date", *date).Msg("Failed to load fixes from database")
		}
	}

	catalog, err := geofence.NewCatalog(pois)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid POI catalog")
	}

	log.Info().
		Int("fixes", len(fixes)).
		Int("pois", catalog.Len()).
		Bool("track", *track).
		Float64("load_kg", *loadKg).
		Msg("Starting replay")

	report, err := replay.Run(fixes, engineCfg, catalog, tiers, replay.Options{
		PlayerID: *player,
		Track:    *track,
		LoadKg:   *loadKg,
		Logger:   log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}

	for _, ev := range report.Events {
		logEvent(ev)
	}

	out := io.Writer(os.Stdout)
	if *outFile != "" {
		file, err := os.Create(*outFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *outFile).Msg("Failed to create report")
		}
		defer file.Close()
		out = file
	}

	if err := replay.WriteReport(out, report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}

	tel := report.Telemetry
	log.Info().
		Int("accepted", tel.Diagnostics.Accepted).
		Int("low_accuracy", tel.Diagnostics.LowAccuracy).
		Int("jump", tel.Diagnostics.Jump).
		Int("window_jump", tel.Diagnostics.WindowJump).
		Int("overspeed", tel.Diagnostics.Overspeed).
		Int("stale", tel.Diagnostics.StaleTimestamp).
		Float64("accrued_m", tel.AccruedMeters).
		Str("tracking_state", tel.TrackingState).
		Msg("Replay complete")
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parse(file)
}

// loadFromDatabase reads the stored locations for date and, unless pois were
// given on the command line, the live POI catalog
func loadFromDatabase(cfg *config.Config, date, device string, pois []geofence.POI) ([]gps.Fix, []geofence.POI, error) {
	dbClient, err := database.NewClient(cfg.DatabaseDSN())
	if err != nil {
		return nil, nil, err
	}
	defer dbClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fixes, err := dbClient.GetFixesByDate(ctx, date, device)
	if err != nil {
		return nil, nil, err
	}

	if pois == nil {
		if pois, err = dbClient.ListPOIs(ctx); err != nil {
			return nil, nil, err
		}
	}

	return fixes, pois, nil
}

func logEvent(ev engine.Event) {
	entry := log.Info().
		Str("event_id", ev.ID.String()).
		Str("kind", string(ev.Kind)).
		Time("at", ev.At)

	switch {
	case ev.Territory != nil:
		entry = entry.
			Float64("area_m2", ev.Territory.AreaSquareMeters).
			Int("vertices", ev.Territory.VertexCount)
	case ev.POI != nil:
		entry = entry.Str("poi_id", ev.POI.ID).Str("poi_name", ev.POI.Name)
	case ev.Tier != nil:
		entry = entry.Uint32("tier_id", ev.Tier.ID).Str("tier_name", ev.Tier.Name)
	}

	entry.Msg("Event")
}

// setLogLevel configures the global log level
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
