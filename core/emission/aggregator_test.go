package emission_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/emission"
	"github.com/adalundhe/halflife/core/nuclide"
)

var id = nuclide.MustParseID

type link struct {
	to        string
	branching float64
	typ       nuclide.DecayType
}

type line struct {
	energy    float64
	intensity float64
	typ       nuclide.RadiationType
}

func mk(t *testing.T, name string, halfLife float64, links []link, lines ...line) *nuclide.Nuclide {
	t.Helper()
	spec := nuclide.Spec{ID: id(name), Element: name, Reference: "test"}
	if halfLife == 0 {
		spec.Stable = true
	} else {
		spec.HalfLife = nuclide.Exact(halfLife)
	}
	for _, l := range links {
		spec.Daughters = append(spec.Daughters, nuclide.DecayMode{
			Daughter:  id(l.to),
			Type:      l.typ,
			Branching: nuclide.Exact(l.branching),
		})
	}
	for _, l := range lines {
		intensity := nuclide.Exact(l.intensity)
		if math.IsNaN(l.intensity) {
			intensity = nuclide.Unknown()
		}
		spec.Lines = append(spec.Lines, nuclide.EmissionLine{
			Energy:    nuclide.Exact(l.energy),
			Intensity: intensity,
			Type:      l.typ,
		})
	}
	n, err := nuclide.New(spec)
	require.NoError(t, err)
	return n
}

// bismuth212 is Bi-212 → Po-212 (64.06 %) / Tl-208 (35.94 %) → Pb-208.
func bismuth212(t *testing.T) *chain.Chain {
	t.Helper()
	cat, err := nuclide.NewCatalog(
		mk(t, "Bi-212", 3633,
			[]link{{"Po-212", 0.6406, nuclide.DecayBetaMinus}, {"Tl-208", 0.3594, nuclide.DecayAlpha}},
			line{77.1, 0.3, nuclide.RadiationXK},
			line{727.33, 6.67, nuclide.RadiationGamma},
			line{1620.5, math.NaN(), nuclide.RadiationGamma},
		),
		mk(t, "Po-212", 2.99e-7,
			[]link{{"Pb-208", 1, nuclide.DecayAlpha}},
			line{8784.86, 100, nuclide.RadiationAlpha},
		),
		mk(t, "Tl-208", 183.18,
			[]link{{"Pb-208", 1, nuclide.DecayBetaMinus}},
			line{72.8, 2.0, nuclide.RadiationXK},
			line{583.19, 85.0, nuclide.RadiationGamma},
			line{2614.51, 99.75, nuclide.RadiationGamma},
		),
		mk(t, "Pb-208", 0, nil),
	)
	require.NoError(t, err)
	ch, err := chain.Build(cat, []nuclide.ID{id("Bi-212")})
	require.NoError(t, err)
	return ch
}

func solve(t *testing.T, ch *chain.Chain, atoms float64) *bateman.Timeline {
	t.Helper()
	inv, err := bateman.InventoryOf(ch.Roots()[0], atoms)
	require.NoError(t, err)
	tl, err := bateman.NewSolver().Solve(ch, inv, nil)
	require.NoError(t, err)
	return tl
}

func relErr(got, want float64) float64 {
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}

func TestAggregate_ForeverMatchesBranchingWeightedIntensity(t *testing.T) {
	const n0 = 1e12
	ch := bismuth212(t)
	tl := solve(t, ch, n0)

	sp, err := emission.NewAggregator(nil).Aggregate(context.Background(), tl, emission.Forever())
	require.NoError(t, err)

	assert.Less(t, relErr(sp.Decays[id("Bi-212")], n0), 1e-9)
	assert.Less(t, relErr(sp.Decays[id("Po-212")], 0.6406*n0), 1e-9)
	assert.Less(t, relErr(sp.Decays[id("Tl-208")], 0.3594*n0), 1e-9)
	assert.NotContains(t, sp.Decays, id("Pb-208"), "stable sinks do not decay")

	want := n0*(0.003+0.0667) + 0.6406*n0*1.0 + 0.3594*n0*(0.02+0.85+0.9975)
	assert.Less(t, relErr(sp.Total(), want), 1e-9)

	tl208 := sp.Counts[nuclide.LineKey{Nuclide: id("Tl-208"), Index: 2}]
	assert.Less(t, relErr(tl208, 0.3594*n0*0.9975), 1e-9)

	assert.Equal(t, 6, sp.Len(), "unknown intensity is skipped")
	for i := 1; i < len(sp.Lines); i++ {
		assert.LessOrEqual(t, sp.Lines[i-1].Energy(), sp.Lines[i].Energy())
	}
}

func TestAggregate_SingleNuclideWindow(t *testing.T) {
	const n0, half = 1e6, 100.0
	cat, err := nuclide.NewCatalog(
		mk(t, "Cs-137", half, nil, line{661.657, 85.1, nuclide.RadiationGamma}),
	)
	require.NoError(t, err)
	ch, err := chain.Build(cat, []nuclide.ID{id("Cs-137")})
	require.NoError(t, err)
	tl := solve(t, ch, n0)

	w := emission.Window{Start: 50, End: 300}
	sp, err := emission.NewAggregator(nil).Aggregate(context.Background(), tl, w)
	require.NoError(t, err)

	lambda := math.Ln2 / half
	decays := n0 * (math.Exp(-lambda*w.Start) - math.Exp(-lambda*w.End))
	assert.Less(t, relErr(sp.Decays[id("Cs-137")], decays), 1e-12)
	assert.Less(t, relErr(sp.Total(), decays*0.851), 1e-12)
}

func TestAggregate_WindowsAreAdditive(t *testing.T) {
	tl := solve(t, bismuth212(t), 5e9)
	agg := emission.NewAggregator(nil)
	ctx := context.Background()

	a, err := agg.Aggregate(ctx, tl, emission.Window{Start: 0, End: 600})
	require.NoError(t, err)
	b, err := agg.Aggregate(ctx, tl, emission.Window{Start: 600, End: 7200})
	require.NoError(t, err)
	whole, err := agg.Aggregate(ctx, tl, emission.Until(7200))
	require.NoError(t, err)

	for key, c := range whole.Counts {
		assert.Less(t, relErr(a.Counts[key]+b.Counts[key], c), 1e-9, key.String())
	}
}

func TestAggregate_EmptyWindow(t *testing.T) {
	tl := solve(t, bismuth212(t), 1e9)
	sp, err := emission.NewAggregator(nil).Aggregate(context.Background(), tl, emission.Window{Start: 10, End: 10})
	require.NoError(t, err)
	assert.Zero(t, sp.Len())
	assert.Zero(t, sp.Total())
}

func TestAggregate_Errors(t *testing.T) {
	tl := solve(t, bismuth212(t), 1e9)
	agg := emission.NewAggregator(nil)
	ctx := context.Background()

	_, err := agg.Aggregate(ctx, tl, emission.Window{Start: 10, End: 5})
	assert.ErrorIs(t, err, emission.ErrInvertedWindow)

	_, err = agg.Aggregate(ctx, tl, emission.Window{Start: -1, End: 5})
	assert.ErrorIs(t, err, emission.ErrNegativeTime)
	assert.ErrorIs(t, err, bateman.ErrNegativeTime)

	_, err = agg.Aggregate(ctx, tl, emission.Window{Start: 0, End: math.NaN()})
	assert.ErrorIs(t, err, emission.ErrInvertedWindow)

	_, err = agg.Aggregate(ctx, nil, emission.Forever())
	assert.ErrorIs(t, err, emission.ErrNilTimeline)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = agg.Aggregate(cancelled, tl, emission.Forever())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLineWeight(t *testing.T) {
	n := mk(t, "Tl-208", 183.18, nil,
		line{72.8, 2.0, nuclide.RadiationXK},
		line{583.19, 85.0, nuclide.RadiationGamma},
		line{2614.51, 99.75, nuclide.RadiationGamma},
	)
	assert.InDelta(t, 1.8675, emission.LineWeight(n), 1e-12)
	assert.InDelta(t, 1.8475, emission.LineWeight(n, nuclide.RadiationGamma), 1e-12)
	assert.Zero(t, emission.LineWeight(n, nuclide.RadiationAlpha))
}
