package bateman

import (
	"fmt"
	"maps"
	"slices"

	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/nuclide"
)

// Timeline is the solved population of every node of a chain as a
// continuous function of time, plus samples on the requested grid. It is
// immutable and safe for concurrent reads.
type Timeline struct {
	chain      *chain.Chain
	inventory  Inventory
	times      []float64
	expansions []Expansion
	ids        []nuclide.ID
	lambdas    []float64
	samples    [][]float64
	warnings   []PrecisionWarning
	strategies map[string]int
}

func newTimeline(ch *chain.Chain, inv Inventory, times []float64, exps []Expansion, strategies map[string]int) *Timeline {
	tl := &Timeline{
		chain:      ch,
		inventory:  inv,
		times:      times,
		expansions: exps,
		lambdas:    ch.DecayConstants(),
		strategies: strategies,
	}
	tl.ids = make([]nuclide.ID, ch.Len())
	for i := range tl.ids {
		tl.ids[i] = ch.Node(i).ID
	}
	tl.samples = make([][]float64, len(exps))
	for i := range exps {
		row := make([]float64, len(times))
		for k, t := range times {
			row[k] = tl.population(i, t)
		}
		tl.samples[i] = row
	}
	return tl
}

// population evaluates node i at t. At t = 0 the initial condition is
// returned exactly.
func (tl *Timeline) population(i int, t float64) float64 {
	if t == 0 {
		return tl.inventory.Atoms(tl.ids[i])
	}
	return tl.expansions[i].Eval(t)
}

func (tl *Timeline) index(id nuclide.ID) (int, error) {
	i, ok := tl.chain.Index(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", chain.ErrNotInChain, id)
	}
	return i, nil
}

// Chain returns the solved chain.
func (tl *Timeline) Chain() *chain.Chain { return tl.chain }

// Inventory returns the initial condition.
func (tl *Timeline) Inventory() Inventory { return tl.inventory }

// Times returns the requested time grid.
func (tl *Timeline) Times() []float64 { return slices.Clone(tl.times) }

// Warnings returns precision findings attached to the result.
func (tl *Timeline) Warnings() []PrecisionWarning { return slices.Clone(tl.warnings) }

// Strategies returns how many path terms each strategy expanded.
func (tl *Timeline) Strategies() map[string]int { return maps.Clone(tl.strategies) }

// Expansion returns the population expansion of id.
func (tl *Timeline) Expansion(id nuclide.ID) (Expansion, bool) {
	i, ok := tl.chain.Index(id)
	if !ok {
		return Expansion{}, false
	}
	return tl.expansions[i], true
}

// DecayConstant returns the decay constant used for id.
func (tl *Timeline) DecayConstant(id nuclide.ID) (float64, bool) {
	i, ok := tl.chain.Index(id)
	if !ok {
		return 0, false
	}
	return tl.lambdas[i], true
}

// Population returns the number of atoms of id at t.
func (tl *Timeline) Population(id nuclide.ID, t float64) (float64, error) {
	if err := CheckTime(t); err != nil {
		return 0, err
	}
	i, err := tl.index(id)
	if err != nil {
		return 0, err
	}
	return tl.population(i, t), nil
}

// Activity returns the decay rate of id at t in Bq.
func (tl *Timeline) Activity(id nuclide.ID, t float64) (float64, error) {
	n, err := tl.Population(id, t)
	if err != nil {
		return 0, err
	}
	i, _ := tl.chain.Index(id)
	return n * tl.lambdas[i], nil
}

// Populations returns every node's population at t.
func (tl *Timeline) Populations(t float64) (map[nuclide.ID]float64, error) {
	if err := CheckTime(t); err != nil {
		return nil, err
	}
	out := make(map[nuclide.ID]float64, len(tl.expansions))
	for i := range tl.expansions {
		out[tl.ids[i]] = tl.population(i, t)
	}
	return out, nil
}

// Activities returns every node's activity at t in Bq. Stable nodes report 0.
func (tl *Timeline) Activities(t float64) (map[nuclide.ID]float64, error) {
	if err := CheckTime(t); err != nil {
		return nil, err
	}
	out := make(map[nuclide.ID]float64, len(tl.expansions))
	for i := range tl.expansions {
		out[tl.ids[i]] = tl.population(i, t) * tl.lambdas[i]
	}
	return out, nil
}

// TotalPopulation returns the sum of all node populations at t.
func (tl *Timeline) TotalPopulation(t float64) (float64, error) {
	if err := CheckTime(t); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range tl.expansions {
		sum += tl.population(i, t)
	}
	return sum, nil
}

// Sample returns id's population at each requested time, or nil if id is
// not in the chain.
func (tl *Timeline) Sample(id nuclide.ID) []float64 {
	i, ok := tl.chain.Index(id)
	if !ok {
		return nil
	}
	return slices.Clone(tl.samples[i])
}

// IntegratedPopulation returns ∫N dt over [t0, t1] in atom·seconds. t1 may be +Inf.
func (tl *Timeline) IntegratedPopulation(id nuclide.ID, t0, t1 float64) (float64, error) {
	if err := CheckTime(t0); err != nil {
		return 0, err
	}
	if t1 < t0 {
		return 0, fmt.Errorf("%w: [%g, %g]", ErrInvertedInterval, t0, t1)
	}
	i, err := tl.index(id)
	if err != nil {
		return 0, err
	}
	return tl.expansions[i].Integral(t0, t1), nil
}

// IntegratedActivity returns the number of decays of id over [t0, t1].
// t1 may be +Inf.
func (tl *Timeline) IntegratedActivity(id nuclide.ID, t0, t1 float64) (float64, error) {
	n, err := tl.IntegratedPopulation(id, t0, t1)
	if err != nil {
		return 0, err
	}
	i, _ := tl.chain.Index(id)
	if tl.lambdas[i] == 0 {
		return 0, nil
	}
	return n * tl.lambdas[i], nil
}
