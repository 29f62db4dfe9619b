// Package bateman solves the linear decay equations of an arbitrary decay
// chain exactly.
//
// Every populated node seeds one term per directed path leaving it; the
// path term is the inverse Laplace transform of Π λ_j / Π (s+λ_j) scaled by
// the initial population and the product of branchings along the path.
// Because the equations are linear, a node's population is the sum of the
// terms of every path ending at it. Each term is an Expansion, so
// populations can be evaluated and integrated in closed form.
package bateman

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/nuclide"
)

// =============================================================================
// Options
// =============================================================================

// Option configures a Solver.
type Option func(*Solver)

// WithEpsilon sets the relative tolerance for treating decay constants as
// equal. Non-positive values are ignored.
func WithEpsilon(eps float64) Option {
	return func(s *Solver) {
		if eps > 0 {
			s.epsilon = eps
		}
	}
}

// WithPrecisionSpan sets the decay constant ratio above which a
// PrecisionWarning is attached.
func WithPrecisionSpan(span float64) Option {
	return func(s *Solver) {
		if span > 1 {
			s.span = span
		}
	}
}

// WithLogger sets the solver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// =============================================================================
// Solver
// =============================================================================

// Solver computes population timelines. It holds configuration only and is
// safe for concurrent use.
type Solver struct {
	epsilon float64
	span    float64
	near    float64
	logger  *slog.Logger
}

// NewSolver creates a solver with the given options.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		epsilon: DefaultEpsilon,
		span:    DefaultPrecisionSpan,
		near:    DefaultNearDegenerate,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.near <= s.epsilon {
		s.near = s.epsilon
	}
	return s
}

// Epsilon returns the degeneracy tolerance.
func (s *Solver) Epsilon() float64 { return s.epsilon }

// Solve returns the population timeline of ch for the initial inventory,
// sampled at times. The inventory may only populate nodes of ch. Every
// radioactive node of ch must have a known half-life.
func (s *Solver) Solve(ch *chain.Chain, inv Inventory, times []float64) (*Timeline, error) {
	if ch == nil {
		return nil, ErrNilChain
	}
	for _, t := range times {
		if err := CheckTime(t); err != nil {
			return nil, err
		}
	}
	if err := CheckResolved(ch); err != nil {
		return nil, err
	}
	for _, id := range inv.IDs() {
		if !ch.Contains(id) {
			return nil, fmt.Errorf("%w: %s", chain.ErrNotInChain, id)
		}
	}

	lambdas := ch.DecayConstants()
	expansions := make([]Expansion, ch.Len())
	strategies := make(map[string]int)

	for _, id := range inv.IDs() {
		origin, _ := ch.Index(id)
		n0 := inv.Atoms(id)

		var walkErr error
		ch.WalkPaths(origin, func(path []int, branching float64) bool {
			term, name, err := s.pathTerm(path, lambdas, n0*branching)
			if err != nil {
				walkErr = err
				return false
			}
			strategies[name]++
			last := path[len(path)-1]
			expansions[last] = expansions[last].Add(term)
			return true
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}

	for i := range expansions {
		expansions[i] = expansions[i].Simplify()
	}

	tl := newTimeline(ch, inv, slices.Clone(times), expansions, strategies)
	tl.warnings = checkPrecision(ch, s.epsilon, s.span, s.near)
	for _, w := range tl.warnings {
		s.logger.Warn("bateman precision", slog.String("detail", w.Error()))
	}

	s.logger.Debug("bateman solve",
		slog.Int("nodes", ch.Len()),
		slog.Int("times", len(times)),
		slog.Int("closed_form_paths", strategies[ClosedForm{}.Name()]),
		slog.Int("degenerate_paths", strategies[Degenerate{}.Name()]))

	return tl, nil
}

// pathTerm expands one path and scales it by scale times the decay
// constants of every node but the last.
func (s *Solver) pathTerm(path []int, lambdas []float64, scale float64) (Expansion, string, error) {
	rates := make([]float64, len(path))
	for k, i := range path {
		rates[k] = lambdas[i]
	}

	prefactor := scale
	for _, l := range rates[:len(rates)-1] {
		prefactor *= l
	}

	strategy := SelectStrategy(rates, s.epsilon)
	exp, err := strategy.Expand(rates)
	if err != nil {
		return Expansion{}, "", err
	}
	return exp.Scale(prefactor), strategy.Name(), nil
}

// CheckResolved returns an *UnresolvedError naming every radioactive node
// of ch without a known half-life.
func CheckResolved(ch *chain.Chain) error {
	ids := ch.UnknownDecayConstants()
	if len(ids) == 0 {
		return nil
	}
	slices.SortFunc(ids, nuclide.Compare)
	return &UnresolvedError{IDs: ids}
}

// IsUnresolved reports whether err stems from a missing half-life.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolvedDecayConstant)
}
