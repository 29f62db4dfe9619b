package datasheet

import (
	"fmt"
	"math"

	"github.com/adalundhe/halflife/core/nuclide"
)

const (
	// SecondsPerYear is the Julian year used by the datasheets' "(a)" fields.
	SecondsPerYear = 365.25 * 24 * 3600

	defaultConsistencyTolerance = 0.01
)

// Warning is a non-fatal finding about a loaded datasheet.
type Warning struct {
	File    string
	Nuclide nuclide.ID
	Msg     string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.File, w.Nuclide, w.Msg)
}

// CheckConsistency cross-checks redundant header fields of n: the reported
// decay constant against ln(2)/half-life, and the half-life in years against
// the half-life in seconds. Disagreements beyond tolerance (relative) are
// returned as messages; nothing is corrected.
func CheckConsistency(n *nuclide.Nuclide, tolerance float64) []string {
	if tolerance <= 0 {
		tolerance = defaultConsistencyTolerance
	}

	var msgs []string
	hl := n.HalfLife()
	if !hl.Known || n.IsStable() {
		return nil
	}

	if reported := n.ReportedDecayConstant(); reported.Known {
		derived := math.Ln2 / hl.Value
		if relDiff(reported.Value, derived) > tolerance {
			msgs = append(msgs, fmt.Sprintf(
				"reported decay constant %g 1/s disagrees with ln2/half-life %g 1/s", reported.Value, derived))
		}
	}

	if years := n.HalfLifeYears(); years.Known {
		if relDiff(years.Value*SecondsPerYear, hl.Value) > tolerance {
			msgs = append(msgs, fmt.Sprintf(
				"half-life %g a disagrees with half-life %g s", years.Value, hl.Value))
		}
	}

	return msgs
}

func relDiff(a, b float64) float64 {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return 0
	}
	return math.Abs(a-b) / scale
}
