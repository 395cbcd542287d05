package natspub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stuartshay/geo-session-engine/internal/engine"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		name     string
		kind     engine.EventKind
		playerID string
		want     string
	}{
		{"plain id", engine.KindTerritoryClosed, "player-1", "geosession.territory_closed.player-1"},
		{"dotted id", engine.KindTierUnlocked, "a.b.c", "geosession.tier_unlocked.a_b_c"},
		{"wildcards", engine.KindProximityEntered, "x*y>z", "geosession.proximity_entered.x_y_z"},
		{"whitespace", engine.KindProximityExited, "a b", "geosession.proximity_exited.a_b"},
		{"empty id", engine.KindTierUnlocked, "", "geosession.tier_unlocked._"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := engine.Event{Kind: tt.kind, PlayerID: tt.playerID}
			assert.Equal(t, tt.want, Subject(ev))
		})
	}
}

func TestStreamConfig(t *testing.T) {
	cfg := StreamConfig("")
	assert.Equal(t, DefaultStream, cfg.Name)
	assert.Equal(t, []string{"geosession.>"}, cfg.Subjects)
	assert.Equal(t, 2*time.Minute, cfg.Duplicates)

	assert.Equal(t, "CUSTOM", StreamConfig("CUSTOM").Name)
}
