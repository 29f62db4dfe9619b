package emission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/emission"
	"github.com/adalundhe/halflife/core/nuclide"
)

func forever(t *testing.T) *emission.Spectrum {
	t.Helper()
	sp, err := emission.NewAggregator(nil).Aggregate(context.Background(), solve(t, bismuth212(t), 1e6), emission.Forever())
	require.NoError(t, err)
	return sp
}

func TestSpectrum_Histogram(t *testing.T) {
	sp := forever(t)

	hist, err := sp.Histogram([]float64{0, 100, 1000, 3000})
	require.NoError(t, err)
	require.Len(t, hist, 3)

	lowX := sp.Counts[nuclide.LineKey{Nuclide: id("Bi-212"), Index: 0}] +
		sp.Counts[nuclide.LineKey{Nuclide: id("Tl-208"), Index: 0}]
	mid := sp.Counts[nuclide.LineKey{Nuclide: id("Bi-212"), Index: 1}] +
		sp.Counts[nuclide.LineKey{Nuclide: id("Tl-208"), Index: 1}]
	high := sp.Counts[nuclide.LineKey{Nuclide: id("Tl-208"), Index: 2}]

	assert.InDelta(t, lowX, hist[0], 1e-6)
	assert.InDelta(t, mid, hist[1], 1e-6)
	assert.InDelta(t, high, hist[2], 1e-6)

	// The 8.8 MeV alpha is outside the last divider.
	assert.Less(t, hist[0]+hist[1]+hist[2], sp.Total())
}

func TestSpectrum_HistogramInvalid(t *testing.T) {
	sp := forever(t)

	_, err := sp.Histogram([]float64{1})
	assert.ErrorIs(t, err, emission.ErrInvalidDividers)

	_, err = sp.Histogram([]float64{10, 5})
	assert.ErrorIs(t, err, emission.ErrInvalidDividers)
}

func TestSpectrum_Filter(t *testing.T) {
	sp := forever(t)

	gammas := sp.Filter(nuclide.RadiationGamma)
	assert.Equal(t, 3, gammas.Len())
	for _, lc := range gammas.Lines {
		assert.Equal(t, nuclide.RadiationGamma, lc.Line.Type)
	}
	assert.Equal(t, sp.Decays, gammas.Decays)

	photons := sp.Filter(nuclide.RadiationGamma, nuclide.RadiationXK)
	assert.Equal(t, 5, photons.Len())

	all := sp.Filter()
	assert.InDelta(t, sp.Total(), all.Total(), 1e-9)
}

func TestSpectrum_Strongest(t *testing.T) {
	sp := forever(t)

	top := sp.Strongest(2)
	require.Len(t, top, 2)
	assert.Equal(t, id("Po-212"), top[0].Line.Nuclide)
	assert.Equal(t, id("Tl-208"), top[1].Line.Nuclide)
	assert.InDelta(t, 2614.51, top[1].Energy(), 1e-9)

	assert.Len(t, sp.Strongest(-1), sp.Len())
}

func TestEnergyDividers(t *testing.T) {
	d, err := emission.EnergyDividers(0, 100, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, d)

	_, err = emission.EnergyDividers(0, 100, 0)
	assert.ErrorIs(t, err, emission.ErrInvalidBins)
	_, err = emission.EnergyDividers(5, 5, 3)
	assert.ErrorIs(t, err, emission.ErrInvalidBins)
}

func TestSpectrum_AutoDividers(t *testing.T) {
	sp := forever(t)

	d, err := sp.AutoDividers(10)
	require.NoError(t, err)
	require.Len(t, d, 11)

	hist, err := sp.Histogram(d)
	require.NoError(t, err)
	sum := 0.0
	for _, c := range hist {
		sum += c
	}
	assert.InDelta(t, sp.Total(), sum, sp.Total()*1e-12)
}
