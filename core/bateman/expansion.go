package bateman

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// =============================================================================
// Term
// =============================================================================

// Term is c · tⁿ · e^(−μt).
type Term struct {
	Coeff float64
	Power int
	Rate  float64
}

// Eval returns the term's value at t.
func (tm Term) Eval(t float64) float64 {
	if tm.Coeff == 0 {
		return 0
	}
	return tm.Coeff * powExp(t, tm.Power, tm.Rate)
}

// Integral returns the exact integral of the term over [t0, t1]. t1 may be
// +Inf; the result is +Inf or -Inf when the integral diverges.
func (tm Term) Integral(t0, t1 float64) float64 {
	if tm.Coeff == 0 || t1 == t0 {
		return 0
	}

	n := tm.Power
	mu := tm.Rate

	if mu == 0 {
		if math.IsInf(t1, 1) {
			return math.Copysign(math.Inf(1), tm.Coeff)
		}
		p := float64(n + 1)
		return tm.Coeff * (ipow(t1, n+1) - ipow(t0, n+1)) / p
	}

	if n == 0 {
		// −expm1 keeps precision when μ(t1−t0) is small.
		return tm.Coeff * math.Exp(-mu*t0) * -math.Expm1(-mu*(t1-t0)) / mu
	}

	return tm.Coeff * (antiderivative(n, mu, t1) - antiderivative(n, mu, t0))
}

// antiderivative of xⁿe^(−μx): −e^(−μx) Σ_{j=0..n} n!/j! · x^j / μ^(n−j+1).
func antiderivative(n int, mu, x float64) float64 {
	if math.IsInf(x, 1) {
		return 0
	}
	if math.Exp(-mu*x) == 0 {
		return 0
	}
	sum := 0.0
	ratio := 1.0 // n!/j!, built from j = n downward
	for j := n; j >= 0; j-- {
		sum += ratio * powExp(x, j, mu) / math.Pow(mu, float64(n-j+1))
		ratio *= float64(j)
	}
	return -sum
}

// powExp returns xⁿ·e^(−μx), going through logs when xⁿ alone overflows.
func powExp(x float64, n int, mu float64) float64 {
	e := math.Exp(-mu * x)
	if e == 0 || n == 0 {
		return e
	}
	p := ipow(x, n)
	if !math.IsInf(p, 0) {
		return p * e
	}
	return math.Exp(float64(n)*math.Log(x) - mu*x)
}

func ipow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

// =============================================================================
// Expansion
// =============================================================================

// Expansion is a finite sum of Terms. The zero value is the zero function.
// Expansions are values; every method returns a new one.
type Expansion struct {
	terms []Term
}

// NewExpansion returns an expansion of the given terms.
func NewExpansion(terms ...Term) Expansion {
	return Expansion{terms: slices.Clone(terms)}
}

// Terms returns a copy of the terms.
func (e Expansion) Terms() []Term { return slices.Clone(e.terms) }

// Len returns the number of terms.
func (e Expansion) Len() int { return len(e.terms) }

// IsZero reports whether the expansion has no terms.
func (e Expansion) IsZero() bool { return len(e.terms) == 0 }

// Eval returns the expansion's value at t.
func (e Expansion) Eval(t float64) float64 {
	sum := 0.0
	for _, tm := range e.terms {
		sum += tm.Eval(t)
	}
	return sum
}

// Integral returns the exact integral over [t0, t1]; t1 may be +Inf.
func (e Expansion) Integral(t0, t1 float64) float64 {
	sum := 0.0
	for _, tm := range e.terms {
		sum += tm.Integral(t0, t1)
	}
	return sum
}

// Scale multiplies every coefficient by k.
func (e Expansion) Scale(k float64) Expansion {
	out := make([]Term, len(e.terms))
	for i, tm := range e.terms {
		tm.Coeff *= k
		out[i] = tm
	}
	return Expansion{terms: out}
}

// Add returns the sum of e and o.
func (e Expansion) Add(o Expansion) Expansion {
	out := make([]Term, 0, len(e.terms)+len(o.terms))
	out = append(out, e.terms...)
	out = append(out, o.terms...)
	return Expansion{terms: out}
}

// Simplify merges terms with equal power and rate, drops zero coefficients
// and orders terms by rate then power.
func (e Expansion) Simplify() Expansion {
	type key struct {
		power int
		rate  float64
	}
	merged := make(map[key]float64, len(e.terms))
	order := make([]key, 0, len(e.terms))
	for _, tm := range e.terms {
		k := key{tm.Power, tm.Rate}
		if _, ok := merged[k]; !ok {
			order = append(order, k)
		}
		merged[k] += tm.Coeff
	}

	out := make([]Term, 0, len(order))
	for _, k := range order {
		if c := merged[k]; c != 0 {
			out = append(out, Term{Coeff: c, Power: k.power, Rate: k.rate})
		}
	}
	slices.SortFunc(out, func(a, b Term) int {
		if a.Rate != b.Rate {
			if a.Rate < b.Rate {
				return -1
			}
			return 1
		}
		return a.Power - b.Power
	})
	return Expansion{terms: out}
}

func (e Expansion) String() string {
	if len(e.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(e.terms))
	for i, tm := range e.terms {
		switch tm.Power {
		case 0:
			parts[i] = fmt.Sprintf("%g·e^(-%g t)", tm.Coeff, tm.Rate)
		case 1:
			parts[i] = fmt.Sprintf("%g·t·e^(-%g t)", tm.Coeff, tm.Rate)
		default:
			parts[i] = fmt.Sprintf("%g·t^%d·e^(-%g t)", tm.Coeff, tm.Power, tm.Rate)
		}
	}
	return strings.Join(parts, " + ")
}
