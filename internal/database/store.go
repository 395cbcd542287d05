package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/stuartshay/geo-session-engine/internal/calculator"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// TerritoryRecord is a persisted claim and its owner
type TerritoryRecord struct {
	PlayerID string
	territory.Claimed
}

// ListPOIs returns the active POI catalog ordered by id
func (c *Client) ListPOIs(ctx context.Context) ([]geofence.POI, error) {
	query := `
		SELECT id, name, latitude, longitude
		FROM pois
		WHERE active
		ORDER BY id ASC
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }() // nolint:errcheck // Close in defer, error not actionable

	var pois []geofence.POI
	for rows.Next() {
		var p geofence.POI
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		pois = append(pois, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return pois, nil
}

// UpsertPOI creates or replaces a POI
func (c *Client) UpsertPOI(ctx context.Context, p geofence.POI) error {
	query := `
		INSERT INTO pois (id, name, latitude, longitude, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude, active = TRUE
	`
	if _, err := c.db.ExecContext(ctx, query, p.ID, p.Name, p.Latitude, p.Longitude); err != nil {
		return fmt.Errorf("upsert poi %s: %w", p.ID, err)
	}
	return nil
}

// SaveTerritory stores a claimed territory. Saving the same claim twice is a no-op.
func (c *Client) SaveTerritory(ctx context.Context, playerID string, claimed territory.Claimed) error {
	boundary, err := encodeBoundary(claimed.Boundary)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO territories (
			id, session_id, player_id, centroid_latitude, centroid_longitude,
			area_m2, area_method, vertex_count, path_length_m, boundary,
			started_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = c.db.ExecContext(ctx, query,
		claimed.ID,
		claimed.SessionID,
		playerID,
		claimed.Centroid.Latitude,
		claimed.Centroid.Longitude,
		claimed.AreaSquareMeters,
		string(claimed.AreaMethod),
		claimed.VertexCount,
		claimed.PathLengthMeters,
		boundary,
		claimed.StartedAt,
		claimed.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert territory %s: %w", claimed.ID, err)
	}
	return nil
}

// ListTerritories returns a player's claims, newest first
func (c *Client) ListTerritories(ctx context.Context, playerID string, limit int) ([]TerritoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id, session_id, player_id, centroid_latitude, centroid_longitude,
			area_m2, area_method, vertex_count, path_length_m, boundary,
			started_at, closed_at
		FROM territories
		WHERE player_id = $1
		ORDER BY closed_at DESC
		LIMIT $2
	`

	rows, err := c.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }() // nolint:errcheck // Close in defer, error not actionable

	var records []TerritoryRecord
	for rows.Next() {
		var (
			r        TerritoryRecord
			id, sid  uuid.UUID
			method   string
			boundary []byte
		)
		err := rows.Scan(
			&id,
			&sid,
			&r.PlayerID,
			&r.Centroid.Latitude,
			&r.Centroid.Longitude,
			&r.AreaSquareMeters,
			&method,
			&r.VertexCount,
			&r.PathLengthMeters,
			&boundary,
			&r.StartedAt,
			&r.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		r.ID, r.SessionID = id, sid
		r.AreaMethod = calculator.AreaMethod(method)
		if r.Boundary, err = decodeBoundary(boundary); err != nil {
			return nil, fmt.Errorf("territory %s: %w", id, err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return records, nil
}

// LoadLedger returns the persisted reward progress. A player with no row gets
// an empty ledger.
func (c *Client) LoadLedger(ctx context.Context, playerID string) (reward.Ledger, error) {
	query := `
		SELECT total_distance_m, unlocked_tier_ids
		FROM reward_ledgers
		WHERE player_id = $1
	`

	var (
		total float64
		ids   []int64
	)
	err := c.db.QueryRowContext(ctx, query, playerID).Scan(&total, pq.Array(&ids))
	if errors.Is(err, sql.ErrNoRows) {
		return reward.Ledger{}, nil
	}
	if err != nil {
		return reward.Ledger{}, fmt.Errorf("load ledger for %s: %w", playerID, err)
	}

	return reward.Ledger{
		TotalValidatedDistanceMeters: total,
		UnlockedTierIDs:              fromInt64s(ids),
	}, nil
}

// SaveLedger replaces the persisted reward progress
func (c *Client) SaveLedger(ctx context.Context, playerID string, ledger reward.Ledger) error {
	query := `
		INSERT INTO reward_ledgers (player_id, total_distance_m, unlocked_tier_ids, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE
		SET total_distance_m = EXCLUDED.total_distance_m,
			unlocked_tier_ids = EXCLUDED.unlocked_tier_ids,
			updated_at = EXCLUDED.updated_at
	`
	_, err := c.db.ExecContext(ctx, query,
		playerID,
		ledger.TotalValidatedDistanceMeters,
		pq.Array(toInt64s(ledger.UnlockedTierIDs)),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save ledger for %s: %w", playerID, err)
	}
	return nil
}

// encodeBoundary stores a polygon as a GeoJSON geometry
func encodeBoundary(p orb.Polygon) ([]byte, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("territory boundary is empty")
	}
	data, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode boundary: %w", err)
	}
	return data, nil
}

func decodeBoundary(data []byte) (orb.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode boundary: %w", err)
	}
	p, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("decode boundary: expected Polygon, got %T", g.Geometry())
	}
	return p, nil
}

func toInt64s(ids []uint32) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromInt64s(ids []int64) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
