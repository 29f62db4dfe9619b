package query_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/emission"
	"github.com/adalundhe/halflife/core/nuclide"
	"github.com/adalundhe/halflife/core/query"
)

var id = nuclide.MustParseID

const (
	eu155HalfLife = 149.99e6
	eu155Unc      = 0.44e6
)

type link struct {
	to        string
	branching float64
}

func mk(t *testing.T, name string, halfLife, unc float64, links ...link) *nuclide.Nuclide {
	t.Helper()
	spec := nuclide.Spec{ID: id(name), Element: name, Reference: "test"}
	switch {
	case halfLife == 0:
		spec.Stable = true
	case math.IsNaN(halfLife):
	case unc > 0:
		spec.HalfLife = nuclide.WithUncertainty(halfLife, unc)
	default:
		spec.HalfLife = nuclide.Exact(halfLife)
	}
	for _, l := range links {
		spec.Daughters = append(spec.Daughters, nuclide.DecayMode{
			Daughter:  id(l.to),
			Type:      nuclide.DecayBetaMinus,
			Branching: nuclide.Exact(l.branching),
		})
	}
	if !spec.Stable {
		spec.Lines = []nuclide.EmissionLine{{
			Energy:    nuclide.Exact(100),
			Intensity: nuclide.Exact(50),
			Type:      nuclide.RadiationGamma,
		}}
	}
	n, err := nuclide.New(spec)
	require.NoError(t, err)
	return n
}

func testCatalog(t *testing.T) *nuclide.Catalog {
	t.Helper()
	cat, err := nuclide.NewCatalog(
		mk(t, "Eu-155", eu155HalfLife, eu155Unc, link{"Gd-155", 1}),
		mk(t, "Gd-155", 0, 0),
		mk(t, "Sr-90", 9.12e8, 2e6, link{"Y-90", 1}),
		mk(t, "Y-90", 2.3042e5, 4e2, link{"Zr-90", 1}),
		mk(t, "Zr-90", 0, 0),
		mk(t, "Rb-87", 1.56e18, 1e16, link{"Sr-87", 1}),
		mk(t, "Sr-87", 0, 0),
		mk(t, "Xx-1", math.NaN(), 0, link{"Gd-155", 1}),
		mk(t, "Xx-2", 10, 0, link{"Xx-404", 1}),
	)
	require.NoError(t, err)
	return cat
}

func newEngine(t *testing.T, opts ...query.Option) *query.Engine {
	t.Helper()
	e, err := query.NewEngine(testCatalog(t), query.Config{Workers: 4}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func inv(t *testing.T, name string, atoms float64) bateman.Inventory {
	t.Helper()
	i, err := bateman.InventoryOf(id(name), atoms)
	require.NoError(t, err)
	return i
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := query.NewEngine(nil, query.Config{})
	assert.ErrorIs(t, err, query.ErrNilCatalog)

	reg := prometheus.NewRegistry()
	e, err := query.NewEngine(testCatalog(t), query.Config{}, query.WithRegisterer(reg))
	require.NoError(t, err)
	defer e.Close()

	_, err = query.NewEngine(testCatalog(t), query.Config{}, query.WithRegisterer(reg))
	assert.Error(t, err, "duplicate registration")

	cfg := e.Config()
	assert.Equal(t, bateman.DefaultEpsilon, cfg.Epsilon)
	assert.Equal(t, chain.DefaultParentTolerance, cfg.ParentTolerance)
}

func TestEngine_Eu155ActivityAtHalfLife(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Eu-155"))
	require.NoError(t, err)
	assert.Equal(t, 2, ch.Len())

	const n0 = 1e15
	start, err := e.ActivityAt(ctx, ch, inv(t, "Eu-155", n0), 0)
	require.NoError(t, err)
	lambda := math.Ln2 / eu155HalfLife
	assert.InDelta(t, 4.621e-9, lambda, 0.001e-9)
	assert.InDelta(t, lambda*n0, start.Activities[id("Eu-155")], lambda*n0*1e-12)
	assert.Zero(t, start.Activities[id("Gd-155")])

	half, err := e.ActivityAt(ctx, ch, inv(t, "Eu-155", n0), eu155HalfLife)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*lambda*n0, half.Activities[id("Eu-155")], lambda*n0*1e-12)
	assert.InDelta(t, half.Activities[id("Eu-155")], half.Total(), 1e-6)
	assert.Equal(t, []nuclide.ID{id("Eu-155"), id("Gd-155")}, half.IDs())
	assert.Empty(t, half.Warnings)

	assert.Equal(t, int64(1), e.Solves(), "both queries share one solve")
}

func TestEngine_ActivityAtErrors(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Eu-155"))
	require.NoError(t, err)

	_, err = e.ActivityAt(ctx, ch, inv(t, "Eu-155", 1), -1)
	assert.ErrorIs(t, err, bateman.ErrNegativeTime)

	_, err = e.ActivityAt(ctx, ch, inv(t, "Eu-155", 1), math.Inf(1))
	assert.ErrorIs(t, err, bateman.ErrNegativeTime)

	unresolved, err := e.Chain(id("Xx-1"))
	require.NoError(t, err)
	_, err = e.ActivityAt(ctx, unresolved, inv(t, "Xx-1", 1), 10)
	assert.ErrorIs(t, err, bateman.ErrUnresolvedDecayConstant)

	_, err = e.ActivityAt(ctx, nil, inv(t, "Eu-155", 1), 10)
	assert.ErrorIs(t, err, bateman.ErrNilChain)

	assert.Zero(t, e.Solves(), "validation happens before solving")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.ActivityAt(cancelled, ch, inv(t, "Eu-155", 1), 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ChainCache(t *testing.T) {
	e := newEngine(t)

	a, err := e.Chain(id("Sr-90"), id("Eu-155"))
	require.NoError(t, err)
	b, err := e.Chain(id("Eu-155"), id("Sr-90"), id("Eu-155"))
	require.NoError(t, err)
	assert.Same(t, a, b)

	missing, err := e.Chain(id("Xx-2"))
	require.NotNil(t, missing)
	assert.ErrorIs(t, err, chain.ErrMissingDaughter)

	again, err2 := e.Chain(id("Xx-2"))
	assert.Same(t, missing, again)
	assert.ErrorIs(t, err2, chain.ErrMissingDaughter)

	_, err = e.Chain(id("Np-237"))
	assert.ErrorIs(t, err, chain.ErrUnknownRoot)
}

func TestEngine_SolveCache(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Sr-90"))
	require.NoError(t, err)
	times := []float64{0, 1e5, 1e6}

	first, err := e.Solve(ctx, ch, inv(t, "Sr-90", 1e10), times)
	require.NoError(t, err)
	second, err := e.Solve(ctx, ch, inv(t, "Sr-90", 1e10), times)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = e.Solve(ctx, ch, inv(t, "Sr-90", 2e10), times)
	require.NoError(t, err)
	_, err = e.Solve(ctx, ch, inv(t, "Sr-90", 1e10), times[:2])
	require.NoError(t, err)

	assert.Equal(t, int64(3), e.Solves())
	stats := e.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
}

func TestEngine_ConcurrentSolveComputesOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Sr-90"), id("Eu-155"))
	require.NoError(t, err)
	atoms, err := bateman.NewInventory(map[nuclide.ID]float64{id("Sr-90"): 1e12, id("Eu-155"): 3e11})
	require.NoError(t, err)

	const callers = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		got   = make([]*bateman.Timeline, callers)
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got[i], errs[i] = e.Solve(ctx, ch, atoms, []float64{1, 2, 3})
		}()
	}
	close(start)
	wg.Wait()

	for i := range got {
		require.NoError(t, errs[i])
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, int64(1), e.Solves())
}

func TestEngine_ActivityBatch(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Sr-90"))
	require.NoError(t, err)
	atoms := inv(t, "Sr-90", 1e12)

	times := []float64{5e6, 0, 1e6, 5e6, 2.5e5, 1e8}
	results, err := e.ActivityBatch(ctx, ch, atoms, times)
	require.NoError(t, err)
	require.Len(t, results, 5, "duplicate times collapse")

	want := []float64{0, 2.5e5, 1e6, 5e6, 1e8}
	for i, r := range results {
		assert.Equal(t, want[i], r.Time)
		single, err := e.ActivityAt(ctx, ch, atoms, r.Time)
		require.NoError(t, err)
		assert.Equal(t, single.Activities, r.Activities)
	}
	assert.Equal(t, int64(1), e.Solves())

	_, err = e.ActivityBatch(ctx, ch, atoms, nil)
	assert.ErrorIs(t, err, query.ErrNoTimes)

	_, err = e.ActivityBatch(ctx, ch, atoms, []float64{1, -5})
	assert.ErrorIs(t, err, bateman.ErrNegativeTime)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.ActivityBatch(cancelled, ch, atoms, []float64{1, 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ActivityBatchLarge(t *testing.T) {
	e, err := query.NewEngine(testCatalog(t), query.Config{Workers: 3, QueueSize: 4})
	require.NoError(t, err)
	defer e.Close()

	ch, err := e.Chain(id("Sr-90"))
	require.NoError(t, err)

	times := make([]float64, 200)
	for i := range times {
		times[i] = float64(len(times)-i) * 1e5
	}
	results, err := e.ActivityBatch(context.Background(), ch, inv(t, "Sr-90", 1e9), times)
	require.NoError(t, err)
	require.Len(t, results, 200)
	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i-1].Time, results[i].Time)
	}
	assert.Equal(t, int64(200), e.PoolStats().Submitted)
}

func TestEngine_SpectrumOver(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Sr-90"))
	require.NoError(t, err)

	const n0 = 1e9
	sp, err := e.SpectrumOver(ctx, ch, inv(t, "Sr-90", n0), 0, math.Inf(1))
	require.NoError(t, err)
	assert.InDelta(t, n0, sp.Decays[id("Sr-90")], n0*1e-9)
	assert.InDelta(t, n0, sp.Decays[id("Y-90")], n0*1e-9)
	assert.InDelta(t, 2*n0*0.5, sp.Total(), n0*1e-9)

	_, err = e.SpectrumOver(ctx, ch, inv(t, "Sr-90", n0), 10, 5)
	assert.ErrorIs(t, err, emission.ErrInvertedWindow)
	_, err = e.SpectrumOver(ctx, ch, inv(t, "Sr-90", n0), -10, 5)
	assert.ErrorIs(t, err, bateman.ErrNegativeTime)
}

func TestEngine_HalfLife(t *testing.T) {
	e := newEngine(t)

	d, err := e.HalfLifeOf(id("Eu-155"))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(eu155HalfLife)*time.Second, d)

	_, err = e.HalfLifeOf(id("Gd-155"))
	assert.ErrorIs(t, err, query.ErrStable)

	_, err = e.HalfLifeOf(id("Np-237"))
	assert.ErrorIs(t, err, query.ErrUnknownNuclide)

	_, err = e.HalfLifeOf(id("Xx-1"))
	assert.ErrorIs(t, err, query.ErrUnknownHalfLife)

	d, err = e.HalfLifeOf(id("Rb-87"))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(math.MaxInt64), d, "saturates beyond ~292 years")

	s, err := e.HalfLifeSeconds(id("Rb-87"))
	require.NoError(t, err)
	assert.Equal(t, 1.56e18, s)
}

func TestSecondsToDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, query.SecondsToDuration(1.5))
	assert.Equal(t, time.Duration(math.MaxInt64), query.SecondsToDuration(math.Inf(1)))
	assert.Equal(t, time.Duration(math.MinInt64), query.SecondsToDuration(-1e30))
	assert.Zero(t, query.SecondsToDuration(math.NaN()))
}

func TestEngine_ActivityUncertainty(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ch, err := e.Chain(id("Eu-155"))
	require.NoError(t, err)

	const n0 = 1e15
	res, err := e.ActivityUncertainty(ctx, ch, inv(t, "Eu-155", n0), eu155HalfLife)
	require.NoError(t, err)
	assert.Equal(t, []nuclide.ID{id("Eu-155")}, res.Parameters)

	// dA/dT at t = T is A(ln2 − 1)/T.
	a := res.Activities[id("Eu-155")]
	want := a * (1 - math.Ln2) * eu155Unc / eu155HalfLife
	assert.InDelta(t, want, res.Sigma[id("Eu-155")], want*1e-4)
	assert.InDelta(t, want/a, res.Relative(id("Eu-155")), want/a*1e-4)
	assert.Zero(t, res.Sigma[id("Gd-155")])
	assert.Zero(t, res.Relative(id("Gd-155")))
}

func TestEngine_ActivityUncertaintyChain(t *testing.T) {
	e := newEngine(t)

	ch, err := e.Chain(id("Sr-90"))
	require.NoError(t, err)

	res, err := e.ActivityUncertainty(context.Background(), ch, inv(t, "Sr-90", 1e12), 1e6)
	require.NoError(t, err)
	assert.Len(t, res.Parameters, 2)
	assert.Positive(t, res.Sigma[id("Sr-90")])
	assert.Positive(t, res.Sigma[id("Y-90")])
	assert.Less(t, res.Relative(id("Y-90")), 0.01)
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEngine(t, query.WithRegisterer(reg))
	ctx := context.Background()

	ch, err := e.Chain(id("Eu-155"))
	require.NoError(t, err)
	_, err = e.ActivityAt(ctx, ch, inv(t, "Eu-155", 1), 1)
	require.NoError(t, err)
	_, err = e.ActivityAt(ctx, ch, inv(t, "Eu-155", 1), 2)
	require.NoError(t, err)

	m := e.Metrics()
	assert.Equal(t, 1, testutil.CollectAndCount(m, "halflife_solves_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(m, "halflife_cache_lookups_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestEngine_Close(t *testing.T) {
	e, err := query.NewEngine(testCatalog(t), query.Config{})
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Chain(id("Eu-155"))
	assert.ErrorIs(t, err, query.ErrEngineClosed)
	_, err = e.ActivityAt(context.Background(), nil, bateman.Inventory{}, 0)
	assert.ErrorIs(t, err, query.ErrEngineClosed)
}
