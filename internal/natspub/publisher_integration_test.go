//go:build integration

package natspub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartshay/geo-session-engine/internal/engine"
	"github.com/stuartshay/geo-session-engine/internal/reward"
)

func natsURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	return url
}

func TestIntegration_PublishEvent(t *testing.T) {
	url := natsURL(t)
	stream := "GEOSESSION_TEST_" + uuid.NewString()[:8]

	pub, err := NewPublisher(url, stream)
	require.NoError(t, err)
	defer pub.Close()
	defer func() { _ = pub.js.DeleteStream(stream) }()

	sub, err := pub.js.SubscribeSync("geosession.tier_unlocked.>", nats.BindStream(stream))
	require.NoError(t, err)

	tier := reward.Tier{ID: 1, ThresholdMeters: 200, Name: "Novice Explorer"}
	ev := engine.Event{
		ID:       uuid.New(),
		Kind:     engine.KindTierUnlocked,
		PlayerID: "integration-player",
		At:       time.Now().UTC(),
		Tier:     &tier,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pub.Publish(ctx, ev))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "geosession.tier_unlocked.integration-player", msg.Subject)

	var got engine.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, ev.ID, got.ID)
	require.NotNil(t, got.Tier)
	assert.Equal(t, uint32(1), got.Tier.ID)
}
