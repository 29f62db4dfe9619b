package lineindex_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/datasheet"
	"github.com/adalundhe/halflife/core/lineindex"
	"github.com/adalundhe/halflife/core/nuclide"
)

func fixtureIndex(t *testing.T) *lineindex.Index {
	t.Helper()
	loader, err := datasheet.NewLoader(datasheet.DefaultLoaderConfig())
	require.NoError(t, err)
	res, err := loader.LoadDir(context.Background(), "../datasheet/testdata/catalog")
	require.NoError(t, err)
	require.NoError(t, res.Err())

	idx, err := lineindex.Build(res.Catalog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func energies(ms []lineindex.Match) []float64 {
	out := make([]float64, len(ms))
	for i, m := range ms {
		out[i] = m.Line.Energy.Value
	}
	return out
}

func TestIdentify_SinglePeak(t *testing.T) {
	idx := fixtureIndex(t)
	assert.Equal(t, 5, idx.Len())

	ms, err := idx.Identify(59.5, 0.1)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, nuclide.MustParseID("Am-241"), ms[0].Line.Nuclide)
	assert.InDelta(t, 0.0409, ms[0].Delta, 1e-9)
}

func TestIdentify_OrderedByDistance(t *testing.T) {
	idx := fixtureIndex(t)

	ms, err := idx.Identify(50, 60)
	require.NoError(t, err)
	assert.Equal(t, []float64{42.996, 59.5409, 26.3446, 86.5479, 105.3083}, energies(ms))

	gammas, err := idx.Identify(50, 60, nuclide.RadiationGamma)
	require.NoError(t, err)
	assert.Equal(t, []float64{59.5409, 26.3446, 86.5479, 105.3083}, energies(gammas))

	xrays, err := idx.Identify(50, 60, nuclide.RadiationXK, nuclide.RadiationXL)
	require.NoError(t, err)
	assert.Equal(t, []float64{42.996}, energies(xrays))
}

func TestIdentify_InclusiveBounds(t *testing.T) {
	idx := fixtureIndex(t)

	ms, err := idx.Identify(86.5479, 0)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Zero(t, ms[0].Delta)

	none, err := idx.Identify(1000, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIdentify_TiesByIntensity(t *testing.T) {
	weak, err := nuclide.New(nuclide.Spec{
		ID: nuclide.MustParseID("Aa-1"), HalfLife: nuclide.Exact(1), Reference: "test",
		Lines: []nuclide.EmissionLine{{Energy: nuclide.Exact(100), Intensity: nuclide.Exact(1), Type: nuclide.RadiationGamma}},
	})
	require.NoError(t, err)
	strong, err := nuclide.New(nuclide.Spec{
		ID: nuclide.MustParseID("Bb-2"), HalfLife: nuclide.Exact(1), Reference: "test",
		Lines: []nuclide.EmissionLine{{Energy: nuclide.Exact(102), Intensity: nuclide.Exact(90), Type: nuclide.RadiationGamma}},
	})
	require.NoError(t, err)
	cat, err := nuclide.NewCatalog(weak, strong)
	require.NoError(t, err)

	idx, err := lineindex.Build(cat)
	require.NoError(t, err)
	defer idx.Close()

	ms, err := idx.Identify(101, 2)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, nuclide.MustParseID("Bb-2"), ms[0].Line.Nuclide)
	assert.Equal(t, nuclide.MustParseID("Aa-1"), ms[1].Line.Nuclide)
}

func TestIdentify_Errors(t *testing.T) {
	idx := fixtureIndex(t)

	_, err := idx.Identify(-1, 1)
	assert.ErrorIs(t, err, lineindex.ErrInvalidEnergy)
	_, err = idx.Identify(math.NaN(), 1)
	assert.ErrorIs(t, err, lineindex.ErrInvalidEnergy)
	_, err = idx.Identify(10, -1)
	assert.ErrorIs(t, err, lineindex.ErrInvalidTolerance)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	_, err = idx.Identify(10, 1)
	assert.ErrorIs(t, err, lineindex.ErrIndexClosed)
}

func TestBuild_EmptyCatalog(t *testing.T) {
	cat, err := nuclide.NewCatalog()
	require.NoError(t, err)

	idx, err := lineindex.Build(cat)
	require.NoError(t, err)
	defer idx.Close()

	ms, err := idx.Identify(100, 10)
	require.NoError(t, err)
	assert.Empty(t, ms)
}
