package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stuartshay/geo-session-engine/internal/engine"
)

// WriteReport writes one CSV row per fix followed by a summary footer
func WriteReport(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)

	// Write header
	header := []string{
		"index", "timestamp", "latitude", "longitude", "accuracy",
		"accepted", "rejection", "reward_outcome", "territory_outcome", "events",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write data rows
	for _, r := range report.Rows {
		kinds := make([]string, len(r.Events))
		for i, k := range r.Events {
			kinds[i] = string(k)
		}

		row := []string{
			fmt.Sprintf("%d", r.Index),
			r.Fix.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.6f", r.Fix.Latitude),
			fmt.Sprintf("%.6f", r.Fix.Longitude),
			fmt.Sprintf("%.1f", r.Fix.HorizontalAccuracy),
			fmt.Sprintf("%t", r.Accepted),
			r.Rejection,
			r.RewardOutcome,
			r.TerritoryOutcome,
			strings.Join(kinds, ";"),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Write summary footer
	tel := report.Telemetry
	diag := tel.Diagnostics
	_ = writer.Write([]string{})
	_ = writer.Write([]string{"Summary"})
	_ = writer.Write([]string{"Fixes", fmt.Sprintf("%d", len(report.Rows))})
	_ = writer.Write([]string{"Accepted", fmt.Sprintf("%d", diag.Accepted)})
	_ = writer.Write([]string{"Low Accuracy", fmt.Sprintf("%d", diag.LowAccuracy)})
	_ = writer.Write([]string{"Jumps", fmt.Sprintf("%d", diag.Jump)})
	_ = writer.Write([]string{"Window Jumps", fmt.Sprintf("%d", diag.WindowJump)})
	_ = writer.Write([]string{"Overspeed", fmt.Sprintf("%d", diag.Overspeed)})
	_ = writer.Write([]string{"Stale", fmt.Sprintf("%d", diag.StaleTimestamp)})
	_ = writer.Write([]string{"Accrued Distance (m)", fmt.Sprintf("%.2f", tel.AccruedMeters)})
	_ = writer.Write([]string{"Territories Claimed", fmt.Sprintf("%d", countKind(report.Events, engine.KindTerritoryClosed))})
	_ = writer.Write([]string{"Tiers Unlocked", fmt.Sprintf("%d", countKind(report.Events, engine.KindTierUnlocked))})

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func countKind(events []engine.Event, kind engine.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
