//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/geo-session-engine/internal/calculator"
	"github.com/stuartshay/geo-session-engine/internal/config"
	"github.com/stuartshay/geo-session-engine/internal/geofence"
	"github.com/stuartshay/geo-session-engine/internal/reward"
	"github.com/stuartshay/geo-session-engine/internal/territory"
)

// setupTestClient creates a test database client with the schema applied
func setupTestClient(t *testing.T) (*Client, func()) {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	client, err := NewClient(cfg.DatabaseDSN())
	require.NoError(t, err, "Failed to create database client")

	require.NoError(t, client.EnsureSchema(context.Background()))

	cleanup := func() {
		if client != nil {
			client.Close()
		}
	}

	return client, cleanup
}

func TestClient_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	err := client.HealthCheck(context.Background())
	assert.NoError(t, err, "Should perform health check successfully")
}

func TestClient_HealthCheckWithTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	// Test with very short timeout
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure timeout expires

	err := client.HealthCheck(ctx)
	assert.Error(t, err, "HealthCheck should fail with expired context")
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	assert.NoError(t, client.EnsureSchema(context.Background()))
}

func TestPOIs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()
	poi := geofence.POI{
		ID:        "it-" + uuid.NewString()[:8],
		Name:      "Integration Plaza",
		Latitude:  40.736097,
		Longitude: -74.039373,
	}
	require.NoError(t, client.UpsertPOI(ctx, poi))

	pois, err := client.ListPOIs(ctx)
	require.NoError(t, err)
	assert.Contains(t, pois, poi)

	// The catalog built from the store must validate
	_, err = geofence.NewCatalog(pois)
	assert.NoError(t, err)
}

func TestTerritories_SaveAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()
	player := "it-player-" + uuid.NewString()[:8]
	closedAt := time.Now().UTC().Truncate(time.Millisecond)

	claimed := territory.Claimed{
		ID:               uuid.New(),
		SessionID:        uuid.New(),
		Centroid:         calculator.Location{Latitude: 0.0005, Longitude: 0.0005},
		AreaSquareMeters: 12392.0,
		AreaMethod:       calculator.AreaPlanar,
		VertexCount:      4,
		Boundary: orb.Polygon{orb.Ring{
			{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0},
		}},
		PathLengthMeters: 333.9,
		StartedAt:        closedAt.Add(-10 * time.Minute),
		ClosedAt:         closedAt,
	}

	require.NoError(t, client.SaveTerritory(ctx, player, claimed))
	// duplicate save is a no-op
	require.NoError(t, client.SaveTerritory(ctx, player, claimed))

	records, err := client.ListTerritories(ctx, player, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, player, got.PlayerID)
	assert.Equal(t, claimed.ID, got.ID)
	assert.Equal(t, claimed.Boundary, got.Boundary)
	assert.Equal(t, calculator.AreaPlanar, got.AreaMethod)
	assert.InDelta(t, claimed.AreaSquareMeters, got.AreaSquareMeters, 1e-9)
	assert.True(t, claimed.ClosedAt.Equal(got.ClosedAt))
}

func TestLedger_SaveAndLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	ctx := context.Background()
	player := "it-player-" + uuid.NewString()[:8]

	empty, err := client.LoadLedger(ctx, player)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalValidatedDistanceMeters)
	assert.Empty(t, empty.UnlockedTierIDs)

	ledger := reward.Ledger{TotalValidatedDistanceMeters: 612.5, UnlockedTierIDs: []uint32{1, 2}}
	require.NoError(t, client.SaveLedger(ctx, player, ledger))

	got, err := client.LoadLedger(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, ledger, got)

	// reset overwrites
	require.NoError(t, client.SaveLedger(ctx, player, reward.Ledger{}))
	got, err = client.LoadLedger(ctx, player)
	require.NoError(t, err)
	assert.Zero(t, got.TotalValidatedDistanceMeters)
	assert.Empty(t, got.UnlockedTierIDs)
}

func TestGetFixesByDate_NoData(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	// Use a future date that definitely has no data
	fixes, err := client.GetFixesByDate(context.Background(), "2099-12-31", "")
	require.NoError(t, err, "Query should succeed even with no results")
	assert.Empty(t, fixes, "Should return empty slice for future date")
}

func TestGetFixesByDate_EmptyDate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	_, err := client.GetFixesByDate(context.Background(), "", "")
	assert.Error(t, err)
}

func TestGetFixesByDate_RecentData(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, cleanup := setupTestClient(t)
	defer cleanup()

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	fixes, err := client.GetFixesByDate(context.Background(), yesterday, "")
	require.NoError(t, err)

	if len(fixes) == 0 {
		t.Skip("No location data available for validation")
	}

	for _, fix := range fixes {
		assert.True(t, fix.Valid(), "fix coordinates should be in range")
	}
	t.Logf("Found %d fixes for date %s", len(fixes), yesterday)
}
