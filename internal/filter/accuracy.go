// Package filter contains the signal gates every fix passes before it can change
// gameplay state: the accuracy gate, the single-step jump filter and the
// checkpoint speed gate.
package filter

import "github.com/stuartshay/geo-session-engine/internal/gps"

// DefaultAccuracyCeiling is the worst horizontal accuracy (meters) a fix may report
const DefaultAccuracyCeiling = 50.0

// AccuracyFilter drops fixes whose reported precision is too poor to use
type AccuracyFilter struct {
	Ceiling float64
}

// NewAccuracyFilter returns a filter with the given ceiling in meters
func NewAccuracyFilter(ceiling float64) AccuracyFilter {
	return AccuracyFilter{Ceiling: ceiling}
}

// Accept reports whether the fix is precise enough. Malformed fixes (NaN, out of
// range coordinates, negative accuracy) are never accepted.
func (f AccuracyFilter) Accept(fix gps.Fix) bool {
	if !fix.Valid() {
		return false
	}
	return fix.HorizontalAccuracy <= f.Ceiling
}
