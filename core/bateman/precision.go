package bateman

import (
	"fmt"
	"math"
	"slices"
	"strings"

	coreerrors "github.com/adalundhe/halflife/core/errors"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/nuclide"
)

const (
	// DefaultPrecisionSpan is the ratio of largest to smallest decay
	// constant above which double precision results are flagged.
	DefaultPrecisionSpan = 1e15

	// DefaultNearDegenerate is the relative gap below which two distinct
	// decay constants are flagged for cancellation in the closed form.
	DefaultNearDegenerate = 1e-6
)

// PrecisionWarning is attached to a timeline whose values may have lost
// precision. Results are never clamped or rejected because of it.
type PrecisionWarning struct {
	Reason string
	Nodes  []nuclide.ID
}

func (w PrecisionWarning) Error() string {
	names := make([]string, len(w.Nodes))
	for i, id := range w.Nodes {
		names[i] = id.String()
	}
	return fmt.Sprintf("precision warning: %s (%s)", w.Reason, strings.Join(names, ", "))
}

// Tier marks precision findings as warnings.
func (w PrecisionWarning) Tier() coreerrors.ErrorTier { return coreerrors.TierWarning }

// checkPrecision flags decay constant spreads beyond span and pairs that
// are distinct beyond eps but within near of each other.
func checkPrecision(ch *chain.Chain, eps, span, near float64) []PrecisionWarning {
	type rated struct {
		id     nuclide.ID
		lambda float64
	}
	var rates []rated
	for _, n := range ch.Nodes() {
		if l, ok := n.DecayConstant(); ok && l > 0 {
			rates = append(rates, rated{n.ID, l})
		}
	}
	if len(rates) < 2 {
		return nil
	}
	slices.SortFunc(rates, func(a, b rated) int {
		switch {
		case a.lambda < b.lambda:
			return -1
		case a.lambda > b.lambda:
			return 1
		}
		return nuclide.Compare(a.id, b.id)
	})

	var out []PrecisionWarning
	lo, hi := rates[0], rates[len(rates)-1]
	if ratio := hi.lambda / lo.lambda; ratio > span {
		out = append(out, PrecisionWarning{
			Reason: fmt.Sprintf("decay constants span %.3g orders of magnitude", math.Log10(ratio)),
			Nodes:  []nuclide.ID{lo.id, hi.id},
		})
	}

	for i := 1; i < len(rates); i++ {
		a, b := rates[i-1], rates[i]
		if !NearlyEqual(a.lambda, b.lambda, eps) && NearlyEqual(a.lambda, b.lambda, near) {
			out = append(out, PrecisionWarning{
				Reason: fmt.Sprintf("decay constants %g and %g are nearly equal", a.lambda, b.lambda),
				Nodes:  []nuclide.ID{a.id, b.id},
			})
		}
	}
	return out
}
