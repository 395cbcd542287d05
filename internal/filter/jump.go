package filter

import "github.com/stuartshay/geo-session-engine/internal/gps"

// DefaultJumpCeiling is the largest single-step displacement (meters) treated as real movement
const DefaultJumpCeiling = 200.0

// JumpFilter rejects teleport-like displacements between consecutive fixes.
// It is stateless: the caller keeps the last good fix and does not replace it
// when a candidate is rejected.
type JumpFilter struct {
	Ceiling float64
}

// NewJumpFilter returns a filter with the given ceiling in meters
func NewJumpFilter(ceiling float64) JumpFilter {
	return JumpFilter{Ceiling: ceiling}
}

// Accept reports whether candidate is a plausible step from previous.
// A nil previous always accepts and establishes the baseline.
func (f JumpFilter) Accept(previous *gps.Fix, candidate gps.Fix) bool {
	if previous == nil {
		return true
	}
	return f.AcceptDistance(previous.DistanceTo(candidate))
}

// AcceptDistance applies the ceiling to an already computed displacement.
// A displacement equal to the ceiling is accepted.
func (f JumpFilter) AcceptDistance(meters float64) bool {
	return meters <= f.Ceiling
}
