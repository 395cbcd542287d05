package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stuartshay/geo-session-engine/internal/gps"
)

// GetFixesByDate retrieves the OwnTracks location log for one day as fixes.
// Date should be in YYYY-MM-DD format. Rows without an accuracy are returned
// with a zero accuracy.
func (c *Client) GetFixesByDate(ctx context.Context, date string, deviceID string) ([]gps.Fix, error) {
	if date == "" {
		return nil, fmt.Errorf("date is required")
	}

	query := `
		SELECT latitude, longitude, accuracy, timestamp, created_at
		FROM public.locations
		WHERE DATE(created_at) = $1
	`

	args := []interface{}{date}

	// Add device_id filter if specified
	if deviceID != "" {
		query += " AND device_id = $2"
		args = append(args, deviceID)
	}

	query += " ORDER BY created_at ASC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }() // nolint:errcheck // Close in defer, error not actionable

	var fixes []gps.Fix
	for rows.Next() {
		var (
			fix       gps.Fix
			accuracy  sql.NullInt64
			timestamp sql.NullTime
			createdAt time.Time
		)
		if err := rows.Scan(&fix.Latitude, &fix.Longitude, &accuracy, &timestamp, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		// Convert NULL values to zero values
		if accuracy.Valid {
			fix.HorizontalAccuracy = float64(accuracy.Int64)
		}
		fix.Timestamp = fixTime(timestamp, createdAt)

		fixes = append(fixes, fix)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return fixes, nil
}

// fixTime prefers the device timestamp over the ingest time
func fixTime(device sql.NullTime, created time.Time) time.Time {
	if device.Valid && !device.Time.IsZero() {
		return device.Time.UTC()
	}
	return created.UTC()
}
