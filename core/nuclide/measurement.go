package nuclide

import (
	"math"
	"strconv"
)

// Measurement is a reported quantity with its stated uncertainty.
// An unreported value or uncertainty is unknown, never zero.
type Measurement struct {
	Value            float64
	Uncertainty      float64
	Known            bool
	UncertaintyKnown bool
}

// Unknown returns a measurement that was not reported.
func Unknown() Measurement {
	return Measurement{}
}

// Exact returns a known value with an unknown uncertainty.
func Exact(v float64) Measurement {
	return Measurement{Value: v, Known: true}
}

// WithUncertainty returns a known value with a stated uncertainty.
func WithUncertainty(v, u float64) Measurement {
	return Measurement{Value: v, Uncertainty: u, Known: true, UncertaintyKnown: true}
}

// Relative returns the relative uncertainty, or false when either the value
// or its uncertainty is unknown or the value is zero.
func (m Measurement) Relative() (float64, bool) {
	if !m.Known || !m.UncertaintyKnown || m.Value == 0 {
		return 0, false
	}
	return math.Abs(m.Uncertainty / m.Value), true
}

// Scale multiplies value and uncertainty by k, preserving knownness.
func (m Measurement) Scale(k float64) Measurement {
	m.Value *= k
	m.Uncertainty = math.Abs(m.Uncertainty * k)
	return m
}

func (m Measurement) String() string {
	if !m.Known {
		return "unknown"
	}
	v := strconv.FormatFloat(m.Value, 'g', -1, 64)
	if !m.UncertaintyKnown {
		return v
	}
	return v + " ± " + strconv.FormatFloat(m.Uncertainty, 'g', -1, 64)
}
