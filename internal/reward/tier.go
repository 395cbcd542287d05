package reward

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tier is one rung of the walking-distance ladder
type Tier struct {
	ID              uint32  `json:"id"`
	ThresholdMeters float64 `json:"threshold_m"`
	Name            string  `json:"name"`
}

// Table is an immutable ascending tier list shared by every player session
type Table struct {
	tiers []Tier
	byID  map[uint32]int
}

// NewTable validates that thresholds are positive and strictly ascending and
// that ids are unique
func NewTable(tiers []Tier) (*Table, error) {
	t := &Table{
		tiers: make([]Tier, 0, len(tiers)),
		byID:  make(map[uint32]int, len(tiers)),
	}

	prev := 0.0
	for i, tier := range tiers {
		if !(tier.ThresholdMeters > prev) {
			return nil, fmt.Errorf("tier %d: threshold %f must be greater than %f", tier.ID, tier.ThresholdMeters, prev)
		}
		if _, dup := t.byID[tier.ID]; dup {
			return nil, fmt.Errorf("tier %d: duplicate id", tier.ID)
		}
		t.byID[tier.ID] = i
		t.tiers = append(t.tiers, tier)
		prev = tier.ThresholdMeters
	}

	return t, nil
}

// DefaultTiers is the daily walking ladder
func DefaultTiers() []Tier {
	return []Tier{
		{ID: 1, ThresholdMeters: 200, Name: "Novice Explorer"},
		{ID: 2, ThresholdMeters: 500, Name: "Seasoned Explorer"},
		{ID: 3, ThresholdMeters: 1000, Name: "Elite Explorer"},
		{ID: 4, ThresholdMeters: 2000, Name: "Legendary Explorer"},
		{ID: 5, ThresholdMeters: 3000, Name: "Mythic Explorer"},
	}
}

// DefaultTable returns the table built from DefaultTiers
func DefaultTable() *Table {
	t, err := NewTable(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTiers reads a comma separated threshold list such as "200,500,1000".
// Tiers are numbered from 1 in the order given; empty fields are skipped and
// take no number.
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		m, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier threshold %q: %w", field, err)
		}
		id := uint32(len(tiers) + 1)
		tiers = append(tiers, Tier{
			ID:              id,
			ThresholdMeters: m,
			Name:            fmt.Sprintf("Tier %d", id),
		})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tier thresholds in %q", s)
	}
	return tiers, nil
}

// Tiers returns a copy of the tiers in ascending order
func (t *Table) Tiers() []Tier {
	return append([]Tier(nil), t.tiers...)
}

// Len returns the number of tiers
func (t *Table) Len() int {
	return len(t.tiers)
}

// Lookup returns the tier with the given id
func (t *Table) Lookup(id uint32) (Tier, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Tier{}, false
	}
	return t.tiers[i], true
}

// Ledger is the persisted daily reward progress of one player
type Ledger struct {
	TotalValidatedDistanceMeters float64  `json:"total_validated_distance_m"`
	UnlockedTierIDs              []uint32 `json:"unlocked_tier_ids"`
}

// Has reports whether the tier is unlocked
func (l Ledger) Has(id uint32) bool {
	for _, u := range l.UnlockedTierIDs {
		if u == id {
			return true
		}
	}
	return false
}

func sortedIDs(set map[uint32]struct{}) []uint32 {
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
