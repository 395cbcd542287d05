// Package replay runs a recorded fix log through a single engine session and
// reports the verdict for every fix. It backs the replay CLI and is handy for
// tuning filter thresholds against real walks.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/gps"
	"github.com/stuartshay/geo-session-engine/internal/reward"
)

// Options controls a replay run
type Options struct {
	PlayerID string
	Track    bool    // start a territory claim at the first accepted fix
	LoadKg   float64 // carried load applied before the first fix
	Logger   zerolog.Logger
}

// Row is the verdict for one fix
type Row struct {
	Index            int
	Fix              gps.Fix
	Accepted         bool
	Rejection        string
	RewardOutcome    string
	TerritoryOutcome string
	Events           []engine.EventKind
}

// Report is the outcome of a replay
type Report struct {
	Rows      []Row
	Events    []engine.Event
	Telemetry engine.Telemetry
}

// ReadFixes parses a CSV fix log. The header must name the columns timestamp,
// latitude, longitude and accuracy in any order; extra columns are ignored.
// Timestamps are RFC3339 or unix seconds.
func ReadFixes(r io.Reader) ([]gps.Fix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "latitude", "longitude", "accuracy"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", required)
		}
	}

	var fixes []gps.Fix
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		fix, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fixes = append(fixes, fix)
	}

	return fixes, nil
}

func parseRecord(record []string, cols map[string]int) (gps.Fix, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(record[i]), nil
	}

	var fix gps.Fix

	ts, err := field("timestamp")
	if err != nil {
		return fix, err
	}
	if fix.Timestamp, err = parseTimestamp(ts); err != nil {
		return fix, err
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"latitude", &fix.Latitude},
		{"longitude", &fix.Longitude},
		{"accuracy", &fix.HorizontalAccuracy},
	}
	for _, f := range floats {
		raw, err := field(f.name)
		if err != nil {
			return fix, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fix, fmt.Errorf("invalid %s %q: %w", f.name, raw, err)
		}
		*f.dst = v
	}

	return fix, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// Run replays fixes in order through a fresh session
func Run(fixes []gps.Fix, cfg engine.Config, catalog *geofence.Catalog, tiers *reward.Table, opts Options) (*Report, error) {
	if opts.PlayerID == "" {
		opts.PlayerID = "replay"
	}

	session, err := engine.NewSession(opts.PlayerID, cfg, catalog, tiers, engine.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	if err := session.SetLoad(opts.LoadKg); err != nil {
		return nil, err
	}

	report := &Report{Rows: make([]Row, 0, len(fixes))}
	tracking := false

	for i, fix := range fixes {
		res := session.OnFix(fix)

		row := Row{
			Index:            i,
			Fix:              fix,
			Accepted:         res.Accepted,
			RewardOutcome:    res.Reward.Outcome.String(),
			TerritoryOutcome: res.Territory.Outcome.String(),
		}
		if res.Rejection != nil {
			row.Rejection = res.Rejection.Error()
		}

		if opts.Track && !tracking && res.Accepted {
			if _, err := session.StartTracking(fix.Timestamp); err != nil {
				return nil, fmt.Errorf("failed to start tracking: %w", err)
			}
			tracking = true
		}

		for _, ev := range res.Events {
			row.Events = append(row.Events, ev.Kind)
		}
		report.Events = append(report.Events, res.Events...)
		report.Rows = append(report.Rows, row)
	}

	// flush the candidate still waiting for its checkpoint
	if n := len(fixes); n > 0 {
		flush := fixes[n-1].Timestamp.Add(cfg.RewardGate.SampleInterval + cfg.TerritoryGate.SampleInterval)
		report.Events = append(report.Events, session.Tick(flush).Events...)
	}

	report.Telemetry = session.Telemetry()
	return report, nil
}
