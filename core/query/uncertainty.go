package query

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/nuclide"
)

// UncertaintyResult is an ActivityResult with one standard deviation per
// nuclide propagated from the half-life uncertainties of the chain.
type UncertaintyResult struct {
	ActivityResult

	// Sigma maps every chain node to the standard deviation of its
	// activity in Bq.
	Sigma map[nuclide.ID]float64

	// Parameters lists the nuclides whose half-life uncertainty was
	// propagated.
	Parameters []nuclide.ID
}

// Relative returns σ/A for id, or 0 when the activity is zero.
func (r *UncertaintyResult) Relative(id nuclide.ID) float64 {
	a := r.Activities[id]
	if a == 0 {
		return 0
	}
	return r.Sigma[id] / math.Abs(a)
}

type halfLifeParam struct {
	id       nuclide.ID
	halfLife float64
	relative float64
}

// ActivityUncertainty propagates each node's reported half-life uncertainty
// to the activities at time t. Derivatives with respect to every relative
// half-life are taken by central differences and combined in quadrature,
// treating the half-lives as independent.
func (e *Engine) ActivityUncertainty(ctx context.Context, ch *chain.Chain, inv bateman.Inventory, t float64) (*UncertaintyResult, error) {
	base, err := e.ActivityAt(ctx, ch, inv, t)
	if err != nil {
		return nil, err
	}

	nodes := ch.Nodes()
	params := uncertainParams(nodes)

	res := &UncertaintyResult{
		ActivityResult: *base,
		Sigma:          make(map[nuclide.ID]float64, len(nodes)),
	}
	for _, n := range nodes {
		res.Sigma[n.ID] = 0
	}
	if len(params) == 0 {
		return res, nil
	}
	for _, p := range params {
		res.Parameters = append(res.Parameters, p.id)
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	f := func(y, x []float64) {
		perturbed := ch
		for k, p := range params {
			if x[k] == 1 {
				continue
			}
			next, err := perturbed.WithHalfLife(p.id, p.halfLife*x[k])
			if err != nil {
				record(err)
				return
			}
			perturbed = next
		}
		tl, err := e.solver.Solve(perturbed, inv, nil)
		if err != nil {
			record(err)
			return
		}
		for i, n := range nodes {
			a, err := tl.Activity(n.ID, t)
			if err != nil {
				record(err)
				return
			}
			y[i] = a
		}
	}

	x := make([]float64, len(params))
	for k := range x {
		x[k] = 1
	}
	jac := mat.NewDense(len(nodes), len(params), nil)
	fd.Jacobian(jac, f, x, &fd.JacobianSettings{
		Formula:    fd.Central,
		Concurrent: true,
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, n := range nodes {
		var variance float64
		for k, p := range params {
			d := jac.At(i, k) * p.relative
			variance += d * d
		}
		res.Sigma[n.ID] = math.Sqrt(variance)
	}
	return res, nil
}

func uncertainParams(nodes []chain.Node) []halfLifeParam {
	var out []halfLifeParam
	for _, n := range nodes {
		if n.Nuclide == nil || n.Stable() {
			continue
		}
		lambda, ok := n.DecayConstant()
		if !ok || lambda == 0 {
			continue
		}
		rel, ok := n.Nuclide.HalfLife().Relative()
		if !ok || rel == 0 {
			continue
		}
		out = append(out, halfLifeParam{
			id:       n.ID,
			halfLife: math.Ln2 / lambda,
			relative: rel,
		})
	}
	return out
}
