// Package emission turns solved populations into expected emission counts.
//
// The number of decays of a nuclide over a window is λ∫N dt, integrated
// exactly from the population expansion. Each emission line contributes
// decays × intensity/100 expected quanta.
package emission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/nuclide"
)

var (
	// ErrInvertedWindow indicates a window whose end precedes its start.
	ErrInvertedWindow = errors.New("window end precedes start")

	// ErrNegativeTime is bateman.ErrNegativeTime, re-exported for callers
	// that only import this package.
	ErrNegativeTime = bateman.ErrNegativeTime

	// ErrNilTimeline indicates Aggregate was called without a timeline.
	ErrNilTimeline = errors.New("nil timeline")
)

// =============================================================================
// Window
// =============================================================================

// Window is the closed time interval [Start, End] in seconds. End may be
// +Inf for total emissions until decay completes.
type Window struct {
	Start float64
	End   float64
}

// Until returns the window [0, end].
func Until(end float64) Window { return Window{Start: 0, End: end} }

// Forever returns the window [0, +Inf).
func Forever() Window { return Window{Start: 0, End: math.Inf(1)} }

// Validate checks the window bounds.
func (w Window) Validate() error {
	if err := bateman.CheckTime(w.Start); err != nil {
		return err
	}
	if math.IsNaN(w.End) || w.End < w.Start {
		return fmt.Errorf("%w: [%g, %g]", ErrInvertedWindow, w.Start, w.End)
	}
	return nil
}

// Duration returns End − Start.
func (w Window) Duration() float64 { return w.End - w.Start }

func (w Window) String() string {
	return fmt.Sprintf("[%g s, %g s]", w.Start, w.End)
}

// =============================================================================
// Aggregator
// =============================================================================

// Aggregator computes spectra from timelines. It is stateless apart from
// its logger and safe for concurrent use.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger uses slog.Default().
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate returns the expected count of every emission line of every
// resolved radioactive node over w. ctx is checked between nuclides; on
// cancellation the partial result is discarded and ctx.Err() returned.
func (a *Aggregator) Aggregate(ctx context.Context, tl *bateman.Timeline, w Window) (*Spectrum, error) {
	if tl == nil {
		return nil, ErrNilTimeline
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	ch := tl.Chain()
	sp := newSpectrum(w)

	for _, i := range ch.Order() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := ch.Node(i)
		lambda, _ := node.DecayConstant()
		if node.Nuclide == nil || lambda == 0 {
			continue
		}

		decays, err := tl.IntegratedActivity(node.ID, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		if decays == 0 {
			continue
		}
		sp.Decays[node.ID] = decays

		for _, line := range node.Nuclide.Lines() {
			if !line.Intensity.Known {
				continue
			}
			count := decays * line.Intensity.Value / 100
			sp.add(line, count)
		}
	}

	sp.finish()

	a.logger.Debug("spectrum aggregated",
		slog.String("window", w.String()),
		slog.Int("lines", len(sp.Lines)),
		slog.Float64("total", sp.Total()))

	return sp, nil
}

// LineWeight returns Σ intensity/100 over n's lines with known intensity:
// the expected quanta per decay.
func LineWeight(n *nuclide.Nuclide, types ...nuclide.RadiationType) float64 {
	sum := 0.0
	for _, l := range n.Lines() {
		if !l.Intensity.Known || !matchesType(l.Type, types) {
			continue
		}
		sum += l.Intensity.Value / 100
	}
	return sum
}

func matchesType(t nuclide.RadiationType, types []nuclide.RadiationType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}
