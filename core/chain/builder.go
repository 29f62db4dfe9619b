package chain

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/adalundhe/halflife/core/nuclide"
)

const (
	// DefaultParentTolerance is the absolute branching-fraction difference
	// above which a daughter's declared parent entry is flagged.
	DefaultParentTolerance = 1e-3

	branchingSumSlack = 1e-6
)

// =============================================================================
// Options
// =============================================================================

type buildOptions struct {
	parentTolerance float64
	logger          *slog.Logger
}

// Option configures Build.
type Option func(*buildOptions)

// WithParentTolerance sets the absolute tolerance used when comparing a
// parent's branching with the daughter's "possible parent" entry.
func WithParentTolerance(tol float64) Option {
	return func(o *buildOptions) {
		if tol > 0 {
			o.parentTolerance = tol
		}
	}
}

// WithLogger sets the logger that receives build diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// =============================================================================
// Build
// =============================================================================

type visitState int

const (
	unvisited visitState = iota
	onPath
	done
)

type builder struct {
	cat     *nuclide.Catalog
	opts    buildOptions
	chain   *Chain
	state   []visitState
	path    []int
	missing []error
}

// Build follows declared daughter links from roots and returns the decay
// graph they span.
//
// A daughter absent from cat becomes an unresolved stable sink and is
// reported as a *MissingDaughterError; in that case Build returns both the
// chain and the joined errors. A revisit of a node on the current path
// fails with *CycleError and no chain.
func Build(cat *nuclide.Catalog, roots []nuclide.ID, opts ...Option) (*Chain, error) {
	o := buildOptions{parentTolerance: DefaultParentTolerance, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	canonical, err := canonicalRoots(cat, roots)
	if err != nil {
		return nil, err
	}

	b := &builder{
		cat:  cat,
		opts: o,
		chain: &Chain{
			index: make(map[nuclide.ID]int),
		},
	}

	for _, id := range canonical {
		if err := b.visit(id); err != nil {
			return nil, err
		}
		b.chain.roots = append(b.chain.roots, b.chain.index[id])
	}

	if err := b.finish(); err != nil {
		return nil, err
	}

	o.logger.Debug("decay chain built",
		slog.Int("nodes", len(b.chain.nodes)),
		slog.Int("edges", len(b.chain.edges)),
		slog.Int("missing", len(b.missing)),
		slog.Int("warnings", len(b.chain.warnings)))

	return b.chain, errors.Join(b.missing...)
}

func canonicalRoots(cat *nuclide.Catalog, roots []nuclide.ID) ([]nuclide.ID, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	out := slices.Clone(roots)
	slices.SortFunc(out, nuclide.Compare)
	out = slices.Compact(out)

	for _, id := range out {
		if !cat.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, id)
		}
	}
	return out, nil
}

func (b *builder) addNode(id nuclide.ID) int {
	i := len(b.chain.nodes)
	node := Node{Index: i, ID: id}

	if n, ok := b.cat.Get(id); ok {
		node.Nuclide = n
		node.lambda, node.lambdaKnown = n.DecayConstant()
	} else {
		node.Unresolved = true
		node.lambdaKnown = true
	}

	b.chain.nodes = append(b.chain.nodes, node)
	b.chain.index[id] = i
	b.state = append(b.state, unvisited)
	return i
}

// visit performs a depth-first expansion of id. Each node is expanded at
// most once, so every decay mode contributes exactly one edge.
func (b *builder) visit(id nuclide.ID) error {
	i, seen := b.chain.index[id]
	if !seen {
		i = b.addNode(id)
	}

	switch b.state[i] {
	case done:
		return nil
	case onPath:
		return b.cycleAt(i)
	}

	b.state[i] = onPath
	b.path = append(b.path, i)

	if n := b.chain.nodes[i].Nuclide; n != nil {
		modes := n.Daughters()
		branching := b.resolveBranching(n, modes)

		for k, mode := range modes {
			if !b.cat.Has(mode.Daughter) {
				b.missing = append(b.missing, &MissingDaughterError{Parent: n.ID(), Daughter: mode.Daughter})
			}
			if err := b.visit(mode.Daughter); err != nil {
				return err
			}
			b.addEdge(i, b.chain.index[mode.Daughter], mode, branching[k])
		}
	}

	b.path = b.path[:len(b.path)-1]
	b.state[i] = done
	return nil
}

func (b *builder) cycleAt(i int) error {
	start := slices.Index(b.path, i)
	cycle := make([]nuclide.ID, 0, len(b.path)-start+1)
	for _, n := range b.path[start:] {
		cycle = append(cycle, b.chain.nodes[n].ID)
	}
	cycle = append(cycle, b.chain.nodes[i].ID)
	return &CycleError{Path: cycle}
}

func (b *builder) addEdge(from, to int, mode nuclide.DecayMode, branching float64) {
	e := len(b.chain.edges)
	b.chain.edges = append(b.chain.edges, Edge{From: from, To: to, Mode: mode, Branching: branching})
	b.chain.nodes[from].Out = append(b.chain.nodes[from].Out, e)
	b.chain.nodes[to].In = append(b.chain.nodes[to].In, e)
	b.checkParentRef(b.chain.nodes[to], mode, branching)
}

// resolveBranching returns a branching fraction for every mode of n.
// Reported fractions are used as-is. Unreported fractions share whatever
// the reported ones leave, evenly; a single unreported mode gets it all.
func (b *builder) resolveBranching(n *nuclide.Nuclide, modes []nuclide.DecayMode) []float64 {
	out := make([]float64, len(modes))
	known := 0.0
	var unknown []int

	for k, m := range modes {
		if m.Branching.Known {
			out[k] = m.Branching.Value
			known += m.Branching.Value
		} else {
			unknown = append(unknown, k)
		}
	}

	if known > 1+branchingSumSlack {
		b.warn(ConsistencyWarning{
			Parent: n.ID(),
			Msg:    fmt.Sprintf("branching fractions sum to %.6g", known),
		})
	}

	if len(unknown) > 0 {
		share := math.Max(0, 1-known) / float64(len(unknown))
		for _, k := range unknown {
			out[k] = share
		}
		if len(modes) > 1 {
			b.warn(ConsistencyWarning{
				Parent: n.ID(),
				Msg:    fmt.Sprintf("%d unreported branching fraction(s) set to %.6g each", len(unknown), share),
			})
		}
	}

	return out
}

// checkParentRef compares the parent's declared branching with the
// daughter's "possible parent" entry. The parent's value always wins.
func (b *builder) checkParentRef(daughter Node, mode nuclide.DecayMode, branching float64) {
	if daughter.Nuclide == nil {
		return
	}

	ref, ok := daughter.Nuclide.ParentRef(mode.Parent, mode.Type)
	if !ok {
		if len(daughter.Nuclide.Parents()) > 0 {
			b.warn(ConsistencyWarning{
				Parent:   mode.Parent,
				Daughter: daughter.ID,
				Msg:      "daughter does not list this parent",
			})
		}
		return
	}

	if !ref.Branching.Known {
		return
	}
	if diff := math.Abs(ref.Branching.Value - branching); diff > b.opts.parentTolerance {
		b.warn(ConsistencyWarning{
			Parent:   mode.Parent,
			Daughter: daughter.ID,
			Msg: fmt.Sprintf("parent declares branching %.6g, daughter declares %.6g; using %.6g",
				branching, ref.Branching.Value, branching),
		})
	}
}

func (b *builder) warn(w ConsistencyWarning) {
	b.opts.logger.Warn("decay data inconsistency",
		slog.String("parent", w.Parent.String()),
		slog.String("daughter", w.Daughter.String()),
		slog.String("detail", w.Msg))
	b.chain.warnings = append(b.chain.warnings, w)
}

func (b *builder) finish() error {
	c := b.chain

	for _, err := range b.missing {
		var md *MissingDaughterError
		if errors.As(err, &md) {
			c.missing = append(c.missing, md.Daughter)
		}
	}
	slices.SortFunc(c.missing, nuclide.Compare)
	c.missing = slices.Compact(c.missing)

	order, err := topologicalOrder(c)
	if err != nil {
		return err
	}
	c.order = order
	c.layers = computeLayers(c, order)
	c.identity = computeIdentity(c)
	return nil
}
