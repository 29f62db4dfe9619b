package bateman

import (
	"errors"
	"math"
	"slices"
)

// DefaultEpsilon is the relative difference below which two decay
// constants are treated as equal.
const DefaultEpsilon = 1e-9

// ErrDegenerate indicates the closed form met two equal decay constants.
var ErrDegenerate = errors.New("degenerate decay constants")

// =============================================================================
// Strategy
// =============================================================================

// Strategy expands the response of one decay path: the inverse Laplace
// transform of 1/Π(s+λ_j) over the path's decay constants. Multiplying by
// N0, the path's branching product and the decay constants of every node
// but the last gives that path's contribution to the last node.
type Strategy interface {
	Name() string
	Expand(lambdas []float64) (Expansion, error)
}

// NearlyEqual reports whether a and b differ by at most eps relative to
// the larger magnitude.
func NearlyEqual(a, b, eps float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= eps*math.Max(math.Abs(a), math.Abs(b))
}

// HasNearlyEqual reports whether any two decay constants are NearlyEqual.
func HasNearlyEqual(lambdas []float64, eps float64) bool {
	for i := range lambdas {
		for j := i + 1; j < len(lambdas); j++ {
			if NearlyEqual(lambdas[i], lambdas[j], eps) {
				return true
			}
		}
	}
	return false
}

// SelectStrategy picks ClosedForm when every pair of decay constants is
// distinct beyond eps, and Degenerate otherwise.
func SelectStrategy(lambdas []float64, eps float64) Strategy {
	if HasNearlyEqual(lambdas, eps) {
		return Degenerate{Epsilon: eps}
	}
	return ClosedForm{}
}

// =============================================================================
// ClosedForm
// =============================================================================

// ClosedForm is the textbook Bateman sum for distinct decay constants:
// Σ_i e^(−λ_i t) / Π_{j≠i}(λ_j − λ_i).
type ClosedForm struct{}

// Name returns "closed-form".
func (ClosedForm) Name() string { return "closed-form" }

// Expand fails with ErrDegenerate if two decay constants are equal.
func (ClosedForm) Expand(lambdas []float64) (Expansion, error) {
	terms := make([]Term, len(lambdas))
	for i, li := range lambdas {
		denom := 1.0
		for j, lj := range lambdas {
			if j != i {
				denom *= lj - li
			}
		}
		if denom == 0 {
			return Expansion{}, ErrDegenerate
		}
		terms[i] = Term{Coeff: 1 / denom, Rate: li}
	}
	return Expansion{terms: terms}, nil
}

// =============================================================================
// Degenerate
// =============================================================================

// Degenerate groups near-equal decay constants into clusters that share
// their mean rate, then sums the residues of the resulting poles of order
// m. A cluster of m equal constants contributes terms t^(m−1−p)e^(−μt).
type Degenerate struct {
	Epsilon float64
}

// Name returns "degenerate".
func (Degenerate) Name() string { return "degenerate" }

type cluster struct {
	rate float64
	mult int
}

// Expand never fails.
func (d Degenerate) Expand(lambdas []float64) (Expansion, error) {
	clusters := clusterRates(lambdas, d.Epsilon)

	var terms []Term
	for c, cl := range clusters {
		g := residueDerivatives(clusters, c, cl.mult-1)
		for p := 0; p < cl.mult; p++ {
			coeff := g[p] / (factorial(p) * factorial(cl.mult-1-p))
			if coeff == 0 {
				continue
			}
			terms = append(terms, Term{Coeff: coeff, Power: cl.mult - 1 - p, Rate: cl.rate})
		}
	}
	return Expansion{terms: terms}, nil
}

// clusterRates sorts the constants and chains neighbours that are
// NearlyEqual into one cluster.
func clusterRates(lambdas []float64, eps float64) []cluster {
	sorted := slices.Clone(lambdas)
	slices.Sort(sorted)

	var out []cluster
	var sum float64
	start := 0
	for i := 0; i <= len(sorted); i++ {
		if i < len(sorted) && (i == start || NearlyEqual(sorted[i-1], sorted[i], eps)) {
			sum += sorted[i]
			continue
		}
		if i > start {
			n := i - start
			out = append(out, cluster{rate: sum / float64(n), mult: n})
		}
		if i < len(sorted) {
			start = i
			sum = sorted[i]
		}
	}
	return out
}

// residueDerivatives returns g(s), g'(s), …, g^(order)(s) at s = −μ_c for
// g(s) = Π_{d≠c}(s+μ_d)^(−m_d), using h = ln g:
// g^(p+1) = Σ_q C(p,q) h^(q+1) g^(p−q).
func residueDerivatives(clusters []cluster, c, order int) []float64 {
	s := -clusters[c].rate

	g := make([]float64, order+1)
	g[0] = 1
	for d, cl := range clusters {
		if d != c {
			g[0] *= math.Pow(s+cl.rate, -float64(cl.mult))
		}
	}
	if order == 0 {
		return g
	}

	// h[q] = h^(q)(s) = −Σ m_d (−1)^(q−1) (q−1)! / (s+μ_d)^q
	h := make([]float64, order+1)
	for q := 1; q <= order; q++ {
		sign := 1.0
		if (q-1)%2 == 1 {
			sign = -1
		}
		sum := 0.0
		for d, cl := range clusters {
			if d != c {
				sum += float64(cl.mult) / math.Pow(s+cl.rate, float64(q))
			}
		}
		h[q] = -sign * factorial(q-1) * sum
	}

	for p := 0; p < order; p++ {
		sum := 0.0
		for q := 0; q <= p; q++ {
			sum += binomial(p, q) * h[q+1] * g[p-q]
		}
		g[p+1] = sum
	}
	return g
}

func factorial(n int) float64 {
	r := 1.0
	for i := 2; i <= n; i++ {
		r *= float64(i)
	}
	return r
}

func binomial(n, k int) float64 {
	return factorial(n) / (factorial(k) * factorial(n-k))
}
