package filter

import (
	"time"

	"github.com/stuartshay/geo-session-engine/internal/gps"
)

// GateConfig holds the checkpoint parameters of one SpeedGate consumer
type GateConfig struct {
	SampleInterval time.Duration // checkpoint spacing
	JumpCeiling    float64       // meters - displacement treated as a corrupt sample
	SpeedCeiling   float64       // m/s - fastest compliant average speed
	MinAccrual     float64       // meters - jitter floor below which nothing accrues
	OverspeedGrace time.Duration // continuous overspeed tolerated before suppression
}

// DefaultGateConfig returns the walking-pace defaults
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SampleInterval: 10 * time.Second,
		JumpCeiling:    DefaultJumpCeiling,
		SpeedCeiling:   8.33, // 30 km/h
		MinAccrual:     3.0,
		OverspeedGrace: 10 * time.Second,
	}
}

// Outcome classifies what a SpeedGate did with an offered fix
type Outcome int

// Gate outcomes
const (
	OutcomePending    Outcome = iota // buffered, no checkpoint boundary reached
	OutcomeBaseline                  // first fix, became the checkpoint start
	OutcomeAccrued                   // clean interval, distance accrues
	OutcomeJitter                    // clean interval below the accrual floor
	OutcomeJump                      // corrupt interval, baseline reset
	OutcomeOverspeed                 // too fast, within the grace period
	OutcomeSuppressed                // too fast for longer than the grace period
	OutcomeRecovered                 // first compliant interval after suppression
)

var outcomeNames = map[Outcome]string{
	OutcomePending:    "pending",
	OutcomeBaseline:   "baseline",
	OutcomeAccrued:    "accrued",
	OutcomeJitter:     "jitter",
	OutcomeJump:       "jump",
	OutcomeOverspeed:  "overspeed",
	OutcomeSuppressed: "suppressed",
	OutcomeRecovered:  "recovered",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Verdict is the result of offering a fix (or a tick) to a SpeedGate
type Verdict struct {
	Outcome  Outcome
	Distance float64       // meters between checkpoint start and candidate
	Elapsed  time.Duration // time between checkpoint start and candidate
	Speed    float64       // m/s, zero when not judged
	From     gps.Fix
	To       gps.Fix
}

// Accrued reports whether the verdict carries distance for the consumer
func (v Verdict) Accrued() bool {
	return v.Outcome == OutcomeAccrued
}

// Overspeed reports whether the interval was judged too fast
func (v Verdict) Overspeed() bool {
	return v.Outcome == OutcomeOverspeed || v.Outcome == OutcomeSuppressed
}

// Window is the rolling checkpoint state of a SpeedGate. StartAt is in the fix
// clock: it is always the timestamp of a fix, never the time of a tick.
type Window struct {
	StartFix       gps.Fix
	StartAt        time.Time
	OverspeedSince *time.Time
	Suppressed     bool
}

// SpeedGate judges average speed between checkpoints and only lets distance
// accrue for compliant intervals. A SpeedGate is not safe for concurrent use.
type SpeedGate struct {
	cfg     GateConfig
	started bool
	window  Window
	pending *gps.Fix
}

// NewSpeedGate creates a gate with no baseline
func NewSpeedGate(cfg GateConfig) *SpeedGate {
	return &SpeedGate{cfg: cfg}
}

// Config returns the gate parameters
func (g *SpeedGate) Config() GateConfig {
	return g.cfg
}

// Offer buffers fix as the latest candidate and evaluates it when it lies at least
// one sample interval past the current checkpoint start
func (g *SpeedGate) Offer(fix gps.Fix) Verdict {
	if !g.started {
		g.started = true
		g.rebase(fix)
		return Verdict{Outcome: OutcomeBaseline, From: fix, To: fix}
	}

	if fix.Timestamp.Before(g.window.StartFix.Timestamp) ||
		(g.pending != nil && fix.Timestamp.Before(g.pending.Timestamp)) {
		return Verdict{Outcome: OutcomePending, From: g.window.StartFix, To: fix}
	}

	g.pending = &fix
	if fix.Timestamp.Sub(g.window.StartAt) < g.cfg.SampleInterval {
		return Verdict{Outcome: OutcomePending, From: g.window.StartFix, To: fix}
	}
	return g.evaluate()
}

// Tick evaluates the buffered candidate once now has reached the next checkpoint
// boundary. Without a buffered candidate it is a no-op. A host clock running
// ahead of the device only makes the tick fire earlier: the interval is still
// measured between fix timestamps and the next checkpoint starts at the
// candidate's timestamp.
func (g *SpeedGate) Tick(now time.Time) Verdict {
	if !g.started || g.pending == nil {
		return Verdict{Outcome: OutcomePending}
	}
	if now.Sub(g.window.StartAt) < g.cfg.SampleInterval {
		return Verdict{Outcome: OutcomePending, From: g.window.StartFix, To: *g.pending}
	}
	return g.evaluate()
}

// Rebase makes fix the checkpoint start without judging the interval. Overspeed
// and suppression state survive a rebase.
func (g *SpeedGate) Rebase(fix gps.Fix) {
	g.started = true
	g.rebase(fix)
}

// Reset forgets the baseline and all overspeed state
func (g *SpeedGate) Reset() {
	g.started = false
	g.window = Window{}
	g.pending = nil
}

// Window returns a copy of the current checkpoint state
func (g *SpeedGate) Window() Window {
	w := g.window
	if w.OverspeedSince != nil {
		since := *w.OverspeedSince
		w.OverspeedSince = &since
	}
	return w
}

// Suppressed reports whether accrual is currently suppressed
func (g *SpeedGate) Suppressed() bool {
	return g.window.Suppressed
}

func (g *SpeedGate) evaluate() Verdict {
	candidate := *g.pending
	start := g.window.StartFix

	v := Verdict{
		Distance: start.DistanceTo(candidate),
		Elapsed:  candidate.Timestamp.Sub(start.Timestamp),
		From:     start,
		To:       candidate,
	}

	if v.Distance > g.cfg.JumpCeiling {
		g.rebase(candidate)
		v.Outcome = OutcomeJump
		return v
	}

	if v.Elapsed <= 0 {
		v.Outcome = OutcomePending
		return v
	}

	v.Speed = v.Distance / v.Elapsed.Seconds()

	if v.Speed <= g.cfg.SpeedCeiling {
		g.window.OverspeedSince = nil

		if g.window.Suppressed {
			g.window.Suppressed = false
			g.rebase(candidate)
			v.Outcome = OutcomeRecovered
			return v
		}

		if v.Distance >= g.cfg.MinAccrual {
			g.rebase(candidate)
			v.Outcome = OutcomeAccrued
			return v
		}

		// keep the start fix so slow movement keeps adding up, but move the
		// boundary so the next judgement is one interval away
		g.window.StartAt = candidate.Timestamp
		g.pending = nil
		v.Outcome = OutcomeJitter
		return v
	}

	if g.window.OverspeedSince == nil {
		since := candidate.Timestamp
		g.window.OverspeedSince = &since
	}
	if g.window.Suppressed || candidate.Timestamp.Sub(*g.window.OverspeedSince) >= g.cfg.OverspeedGrace {
		g.window.Suppressed = true
		v.Outcome = OutcomeSuppressed
	} else {
		v.Outcome = OutcomeOverspeed
	}

	g.rebase(candidate)
	return v
}

func (g *SpeedGate) rebase(fix gps.Fix) {
	g.window.StartFix = fix
	g.window.StartAt = fix.Timestamp
	g.pending = nil
}
