// Package reward turns validated walking distance into one-shot tier unlocks
package reward

import (
	"fmt"
	"math"
)

type ledgerState struct {
	total    float64
	unlocked map[uint32]struct{}
}

// Ladder holds one player's ledger against a shared tier table. A Ladder is not
// safe for concurrent use.
type Ladder struct {
	table *Table
	state ledgerState
}

// NewLadder creates an empty ledger over table
func NewLadder(table *Table) *Ladder {
	if table == nil {
		table = DefaultTable()
	}
	return &Ladder{
		table: table,
		state: ledgerState{unlocked: make(map[uint32]struct{})},
	}
}

// Accrue adds validated distance and returns every tier whose threshold was
// crossed, in ascending order. Non-positive and non-finite deltas are ignored.
func (l *Ladder) Accrue(delta float64) []Tier {
	if !(delta > 0) || math.IsInf(delta, 0) {
		return nil
	}

	old := l.state.total
	l.state.total += delta

	var unlocked []Tier
	for _, tier := range l.table.tiers {
		if tier.ThresholdMeters <= old {
			continue
		}
		if tier.ThresholdMeters > l.state.total {
			break
		}
		if _, done := l.state.unlocked[tier.ID]; done {
			continue
		}
		l.state.unlocked[tier.ID] = struct{}{}
		unlocked = append(unlocked, tier)
	}
	return unlocked
}

// Reset clears distance and unlocks together
func (l *Ladder) Reset() {
	l.state = ledgerState{unlocked: make(map[uint32]struct{})}
}

// Restore replaces the ledger with a persisted one
func (l *Ladder) Restore(ledger Ledger) error {
	if ledger.TotalValidatedDistanceMeters < 0 ||
		math.IsNaN(ledger.TotalValidatedDistanceMeters) ||
		math.IsInf(ledger.TotalValidatedDistanceMeters, 0) {
		return fmt.Errorf("invalid ledger distance %f", ledger.TotalValidatedDistanceMeters)
	}

	next := ledgerState{
		total:    ledger.TotalValidatedDistanceMeters,
		unlocked: make(map[uint32]struct{}, len(ledger.UnlockedTierIDs)),
	}
	for _, id := range ledger.UnlockedTierIDs {
		if _, ok := l.table.Lookup(id); !ok {
			return fmt.Errorf("ledger references unknown tier %d", id)
		}
		next.unlocked[id] = struct{}{}
	}

	l.state = next
	return nil
}

// Ledger returns a snapshot of the current progress
func (l *Ladder) Ledger() Ledger {
	return Ledger{
		TotalValidatedDistanceMeters: l.state.total,
		UnlockedTierIDs:              sortedIDs(l.state.unlocked),
	}
}

// Total returns the validated distance in meters
func (l *Ladder) Total() float64 {
	return l.state.total
}

// NextTier returns the lowest tier not yet unlocked
func (l *Ladder) NextTier() (Tier, bool) {
	for _, tier := range l.table.tiers {
		if _, done := l.state.unlocked[tier.ID]; !done {
			return tier, true
		}
	}
	return Tier{}, false
}

// DistanceToNextTier returns the meters left to the next tier, zero when every
// tier is unlocked
func (l *Ladder) DistanceToNextTier() float64 {
	tier, ok := l.NextTier()
	if !ok {
		return 0
	}
	return math.Max(0, tier.ThresholdMeters-l.state.total)
}

// Table returns the shared tier table
func (l *Ladder) Table() *Table {
	return l.table
}
