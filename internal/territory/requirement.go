package territory

import (
	"github.com/stuartshay/geo-session-engine/internal/calculator"
	"github.com/stuartshay/geo-session-engine/internal/gps"
)

// PointRequirement decides how many path points a claim needs. Implementations
// are Fixed and LoadScaled.
type PointRequirement interface {
	Required(loadKg float64) int
	isPointRequirement()
}

// Fixed always requires Count points
type Fixed struct {
	Count int
}

// Required implements PointRequirement
func (f Fixed) Required(float64) int {
	return atLeastThree(f.Count)
}

func (Fixed) isPointRequirement() {}

// LoadScaled requires Heavy points once the carried load exceeds HeavyAboveKg
// and Base points otherwise
type LoadScaled struct {
	Base         int
	Heavy        int
	HeavyAboveKg float64
}

// DefaultRequirement is 5 points, 8 when carrying more than 80 kg
func DefaultRequirement() LoadScaled {
	return LoadScaled{Base: 5, Heavy: 8, HeavyAboveKg: 80}
}

// Required implements PointRequirement
func (l LoadScaled) Required(loadKg float64) int {
	if loadKg > l.HeavyAboveKg {
		return atLeastThree(l.Heavy)
	}
	return atLeastThree(l.Base)
}

func (LoadScaled) isPointRequirement() {}

// a polygon needs three vertices no matter what the policy says
func atLeastThree(n int) int {
	if n < 3 {
		return 3
	}
	return n
}

// closureCheck is what a ClosureRule sees on each accepted fix
type closureCheck struct {
	path     []gps.Fix
	current  gps.Fix
	required int
	departed float64 // farthest distance (meters) any fix reached from path[0]
}

func (c closureCheck) enoughPoints() bool {
	return len(c.path) >= c.required && len(c.path) >= 3
}

// ClosureRule decides whether the path closes on the current fix.
// Implementations are ClosureOnReturn and ClosureOnCount.
type ClosureRule interface {
	closes(c closureCheck) bool
	isClosureRule()
}

// ClosureOnReturn closes once enough points exist and the player, having left
// the Radius around the first point, is back inside it
type ClosureOnReturn struct {
	Radius float64
}

func (r ClosureOnReturn) closes(c closureCheck) bool {
	if !c.enoughPoints() || c.departed <= r.Radius {
		return false
	}
	return c.path[0].DistanceTo(c.current) <= r.Radius
}

func (ClosureOnReturn) isClosureRule() {}

// ClosureOnCount closes as soon as enough points exist
type ClosureOnCount struct{}

func (ClosureOnCount) closes(c closureCheck) bool {
	return c.enoughPoints()
}

func (ClosureOnCount) isClosureRule() {}

// DefaultClosureRadius is how close (meters) to the first point a return counts
const DefaultClosureRadius = 60.0

// DefaultClosureRule closes on return within DefaultClosureRadius
func DefaultClosureRule() ClosureRule {
	return ClosureOnReturn{Radius: DefaultClosureRadius}
}

// liveArea is the area of the open path treated as a cyclic polygon
func liveArea(path []gps.Fix) (float64, calculator.AreaMethod) {
	return calculator.PolygonArea(gps.Locations(path))
}
