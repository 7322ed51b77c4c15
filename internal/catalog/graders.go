package catalog

import (
	"fmt"
	"math"
)

// Thresholds used by the default catalog.
const (
	// DefaultWarnSignals is the fewest present signals a multi-signal check
	// needs to be graded warning instead of fail.
	DefaultWarnSignals = 2

	// BinaryWarnSignals leaves single-signal checks without a warning tier.
	BinaryWarnSignals = 1

	BytesPerMs      = 1024.0
	LoadPassBelowMs = 100.0
	LoadWarnBelowMs = 200.0
)

// CountGrader grades marker signals: all present is a pass, at least WarnAt
// present is a warning, anything less is a fail. Non-pass scores are
// round(100*present/total).
type CountGrader struct {
	WarnAt int
}

// MultiSignal returns the grader used by the catalog's multi-signal checks.
func MultiSignal() CountGrader { return CountGrader{WarnAt: DefaultWarnSignals} }

// Binary returns the grader for presence/absence checks.
func Binary() CountGrader { return CountGrader{WarnAt: BinaryWarnSignals} }

// Grade implements Grader.
func (g CountGrader) Grade(sig Signal) (Status, int) {
	if sig.Total <= 0 {
		return StatusFail, 0
	}
	if sig.Present >= sig.Total {
		return StatusPass, 100
	}
	score := Percent(sig.Present, sig.Total)
	if sig.Present >= g.WarnAt {
		return StatusWarning, score
	}
	return StatusFail, score
}

func (g CountGrader) validate() error {
	if g.WarnAt < 1 {
		return fmt.Errorf("count grader: warn threshold must be >= 1, got %d", g.WarnAt)
	}
	return nil
}

// ThresholdGrader grades a numeric signal where lower is better.
type ThresholdGrader struct {
	PassBelow float64
	WarnBelow float64
}

// LoadTime returns the grader for estimated load time.
func LoadTime() ThresholdGrader {
	return ThresholdGrader{PassBelow: LoadPassBelowMs, WarnBelow: LoadWarnBelowMs}
}

// Grade implements Grader.
func (g ThresholdGrader) Grade(sig Signal) (Status, int) {
	v := sig.Value
	if v < g.PassBelow {
		return StatusPass, 100
	}
	score := int(math.Round(100 * g.PassBelow / v))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	if v < g.WarnBelow {
		return StatusWarning, score
	}
	return StatusFail, score
}

func (g ThresholdGrader) validate() error {
	if g.PassBelow <= 0 || g.WarnBelow < g.PassBelow {
		return fmt.Errorf("threshold grader: need 0 < pass (%v) <= warn (%v)", g.PassBelow, g.WarnBelow)
	}
	return nil
}
