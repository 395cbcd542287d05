package reward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(tiers []Tier) []uint32 {
	out := make([]uint32, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, t.ID)
	}
	return out
}

func TestLadder_Accrue(t *testing.T) {
	tests := []struct {
		name     string
		deltas   []float64
		unlocked []uint32
		total    float64
	}{
		{name: "below first tier", deltas: []float64{150}, unlocked: nil, total: 150},
		{name: "exactly on a threshold", deltas: []float64{200}, unlocked: []uint32{1}, total: 200},
		{name: "small steps", deltas: []float64{100, 100, 100, 250}, unlocked: []uint32{1, 2}, total: 550},
		{name: "large catch-up crosses several tiers", deltas: []float64{2500}, unlocked: []uint32{1, 2, 3, 4}, total: 2500},
		{name: "non-positive ignored", deltas: []float64{0, -50, math.NaN(), math.Inf(1), 10}, unlocked: nil, total: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLadder(DefaultTable())
			var got []uint32
			for _, d := range tt.deltas {
				got = append(got, ids(l.Accrue(d))...)
			}
			assert.Equal(t, tt.unlocked, got)
			assert.InDelta(t, tt.total, l.Total(), 1e-9)
		})
	}
}

func TestLadder_EachTierFiresOnce(t *testing.T) {
	l := NewLadder(DefaultTable())

	first := l.Accrue(600)
	assert.Equal(t, []uint32{1, 2}, ids(first))
	assert.Empty(t, l.Accrue(100))

	ledger := l.Ledger()
	assert.Equal(t, []uint32{1, 2}, ledger.UnlockedTierIDs)
	assert.True(t, ledger.Has(2))
	assert.False(t, ledger.Has(3))
}

func TestLadder_MonotonicUntilReset(t *testing.T) {
	l := NewLadder(DefaultTable())
	prev := 0.0
	for _, d := range []float64{12, -5, 40, 0, 300, math.NaN(), 7} {
		l.Accrue(d)
		require.GreaterOrEqual(t, l.Total(), prev)
		prev = l.Total()
	}

	l.Reset()
	ledger := l.Ledger()
	assert.Zero(t, ledger.TotalValidatedDistanceMeters)
	assert.Empty(t, ledger.UnlockedTierIDs)

	assert.Equal(t, []uint32{1}, ids(l.Accrue(200)), "tiers unlock again after a reset")
}

func TestLadder_NextTier(t *testing.T) {
	l := NewLadder(DefaultTable())

	next, ok := l.NextTier()
	require.True(t, ok)
	assert.Equal(t, uint32(1), next.ID)
	assert.InDelta(t, 200, l.DistanceToNextTier(), 1e-9)

	l.Accrue(650)
	next, ok = l.NextTier()
	require.True(t, ok)
	assert.Equal(t, uint32(3), next.ID)
	assert.InDelta(t, 350, l.DistanceToNextTier(), 1e-9)

	l.Accrue(5000)
	_, ok = l.NextTier()
	assert.False(t, ok)
	assert.Zero(t, l.DistanceToNextTier())
}

func TestLadder_Restore(t *testing.T) {
	l := NewLadder(DefaultTable())

	err := l.Restore(Ledger{TotalValidatedDistanceMeters: 1200, UnlockedTierIDs: []uint32{3, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, l.Ledger().UnlockedTierIDs)
	assert.Equal(t, []uint32{4}, ids(l.Accrue(800)))

	assert.Error(t, l.Restore(Ledger{TotalValidatedDistanceMeters: -1}))
	assert.Error(t, l.Restore(Ledger{UnlockedTierIDs: []uint32{99}}))
	assert.InDelta(t, 2000, l.Total(), 1e-9, "failed restore leaves the ledger untouched")
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []Tier
		wantErr bool
	}{
		{name: "defaults", tiers: DefaultTiers()},
		{name: "descending", tiers: []Tier{{ID: 1, ThresholdMeters: 500}, {ID: 2, ThresholdMeters: 200}}, wantErr: true},
		{name: "equal thresholds", tiers: []Tier{{ID: 1, ThresholdMeters: 200}, {ID: 2, ThresholdMeters: 200}}, wantErr: true},
		{name: "zero threshold", tiers: []Tier{{ID: 1, ThresholdMeters: 0}}, wantErr: true},
		{name: "duplicate id", tiers: []Tier{{ID: 1, ThresholdMeters: 100}, {ID: 1, ThresholdMeters: 200}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.tiers)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers(" 100, 400 ,900")
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, uint32(2), tiers[1].ID)
	assert.Equal(t, 400.0, tiers[1].ThresholdMeters)

	_, err = ParseTiers("100,abc")
	assert.Error(t, err)

	_, err = ParseTiers("")
	assert.Error(t, err)
}

func TestParseTiers_SkipsEmptyFields(t *testing.T) {
	tiers, err := ParseTiers("200,,500,")
	require.NoError(t, err)
	require.Len(t, tiers, 2)

	assert.Equal(t, Tier{ID: 1, ThresholdMeters: 200, Name: "Tier 1"}, tiers[0])
	assert.Equal(t, Tier{ID: 2, ThresholdMeters: 500, Name: "Tier 2"}, tiers[1])

	table, err := NewTable(tiers)
	require.NoError(t, err)
	_, ok := table.Lookup(3)
	assert.False(t, ok)
}
