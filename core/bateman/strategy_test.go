package bateman_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/bateman"
)

func TestNearlyEqual(t *testing.T) {
	assert.True(t, bateman.NearlyEqual(1, 1, 0))
	assert.True(t, bateman.NearlyEqual(1, 1+1e-10, 1e-9))
	assert.False(t, bateman.NearlyEqual(1, 1+1e-8, 1e-9))
	assert.False(t, bateman.NearlyEqual(0, 1e-30, 1e-9))
	assert.True(t, bateman.NearlyEqual(0, 0, 1e-9))
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, "closed-form", bateman.SelectStrategy([]float64{1, 2, 0}, 1e-9).Name())
	assert.Equal(t, "degenerate", bateman.SelectStrategy([]float64{1, 2, 1}, 1e-9).Name())
	assert.Equal(t, "degenerate", bateman.SelectStrategy([]float64{1, 1 + 1e-12}, 1e-9).Name())
}

func TestClosedForm_Degenerate(t *testing.T) {
	_, err := bateman.ClosedForm{}.Expand([]float64{0.5, 0.5})
	assert.ErrorIs(t, err, bateman.ErrDegenerate)
}

func TestClosedForm_TwoNode(t *testing.T) {
	la, lb := 0.3, 0.7
	exp, err := bateman.ClosedForm{}.Expand([]float64{la, lb})
	require.NoError(t, err)

	for _, tt := range []float64{0.1, 1, 5, 20} {
		want := (math.Exp(-la*tt) - math.Exp(-lb*tt)) / (lb - la)
		assert.Less(t, relErr(exp.Eval(tt), want), 1e-12)
	}
}

func TestDegenerate_KnownInverse(t *testing.T) {
	// L⁻¹[1/((s+1)²(s+2))] = −e^(−t) + t·e^(−t) + e^(−2t)
	exp, err := bateman.Degenerate{Epsilon: 1e-9}.Expand([]float64{1, 2, 1})
	require.NoError(t, err)

	for _, tt := range []float64{0, 0.5, 1, 3, 10} {
		want := -math.Exp(-tt) + tt*math.Exp(-tt) + math.Exp(-2*tt)
		assert.InDelta(t, want, exp.Eval(tt), 1e-12, "t=%g", tt)
	}
}

func TestDegenerate_TripleEqual(t *testing.T) {
	// L⁻¹[1/(s+λ)³] = t² e^(−λt) / 2
	l := 0.4
	exp, err := bateman.Degenerate{Epsilon: 1e-9}.Expand([]float64{l, l, l})
	require.NoError(t, err)

	for _, tt := range []float64{0.5, 2, 9} {
		want := tt * tt * math.Exp(-l*tt) / 2
		assert.Less(t, relErr(exp.Eval(tt), want), 1e-12)
	}
}

func TestDegenerate_RepeatedPairs(t *testing.T) {
	// L⁻¹[1/((s+1)²(s+3)²)] = e^(−t)(t/4 − 1/4) + e^(−3t)(t/4 + 1/4)
	exp, err := bateman.Degenerate{Epsilon: 1e-9}.Expand([]float64{1, 3, 1, 3})
	require.NoError(t, err)

	for _, tt := range []float64{0.2, 1, 4} {
		want := math.Exp(-tt)*(tt-1)/4 + math.Exp(-3*tt)*(tt+1)/4
		assert.InDelta(t, want, exp.Eval(tt), 1e-12, "t=%g", tt)
	}
}

func TestStrategies_AgreeOnDistinctRates(t *testing.T) {
	rates := []float64{0.9, 0.05, 2.3, 0}

	closed, err := bateman.ClosedForm{}.Expand(rates)
	require.NoError(t, err)
	degenerate, err := bateman.Degenerate{Epsilon: 1e-15}.Expand(rates)
	require.NoError(t, err)

	for _, tt := range []float64{0.1, 1, 10, 100} {
		assert.Less(t, relErr(degenerate.Eval(tt), closed.Eval(tt)), 1e-10, "t=%g", tt)
	}
}

func TestStrategies_AgreeNearEpsilonBoundary(t *testing.T) {
	l := 1e-3
	rates := []float64{l, l * (1 + 1e-7)}

	closed, err := bateman.ClosedForm{}.Expand(rates)
	require.NoError(t, err)
	degenerate, err := bateman.Degenerate{Epsilon: 1e-6}.Expand(rates)
	require.NoError(t, err)
	require.Equal(t, 1, degenerate.Len(), "one cluster of order two")

	for _, tt := range []float64{10, 1000, 5000} {
		assert.Less(t, relErr(degenerate.Eval(tt), closed.Eval(tt)), 1e-5, "t=%g", tt)
	}
}
