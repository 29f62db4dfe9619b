// Package chain resolves daughter links across a nuclide catalog into an
// immutable decay graph.
//
// Nodes live in an arena indexed by int and edges refer to nodes by index,
// so a nuclide reached along several paths is one node with several
// incoming edges. A built Chain is never modified; derived variants such
// as WithHalfLife return a copy.
package chain

import (
	"fmt"
	"math"
	"slices"

	"github.com/adalundhe/halflife/core/nuclide"
)

// =============================================================================
// Node
// =============================================================================

// Node is one nuclide in a chain. Nuclide is nil for an unresolved daughter,
// which the chain treats as a stable sink.
type Node struct {
	Index      int
	ID         nuclide.ID
	Nuclide    *nuclide.Nuclide
	Unresolved bool
	In         []int // incoming edge indices
	Out        []int // outgoing edge indices

	lambda      float64
	lambdaKnown bool
}

// Stable reports whether the node does not decay within the chain.
func (n Node) Stable() bool {
	return n.Unresolved || n.Nuclide.IsStable()
}

// DecayConstant returns the node's decay constant in 1/s. Stable and
// unresolved nodes report (0, true). A radioactive node without a reported
// half-life reports (0, false).
func (n Node) DecayConstant() (float64, bool) {
	return n.lambda, n.lambdaKnown
}

func (n Node) clone() Node {
	n.In = slices.Clone(n.In)
	n.Out = slices.Clone(n.Out)
	return n
}

// =============================================================================
// Edge
// =============================================================================

// Edge is a decay mode between two nodes. Branching is the fraction of the
// parent's decays that follow this edge, resolved to a number even when the
// datasheet left it unreported.
type Edge struct {
	From      int
	To        int
	Mode      nuclide.DecayMode
	Branching float64
}

// =============================================================================
// Chain
// =============================================================================

// Chain is an immutable decay graph rooted at one or more nuclides.
type Chain struct {
	nodes    []Node
	edges    []Edge
	index    map[nuclide.ID]int
	roots    []int
	order    []int
	layers   [][]int
	warnings []ConsistencyWarning
	missing  []nuclide.ID
	identity uint64
}

// Len returns the number of nodes.
func (c *Chain) Len() int { return len(c.nodes) }

// Node returns a copy of the node at index i.
func (c *Chain) Node(i int) Node { return c.nodes[i].clone() }

// Nodes returns copies of all nodes in arena order.
func (c *Chain) Nodes() []Node {
	out := make([]Node, len(c.nodes))
	for i := range c.nodes {
		out[i] = c.nodes[i].clone()
	}
	return out
}

// Edge returns the edge at index i.
func (c *Chain) Edge(i int) Edge { return c.edges[i] }

// Edges returns a copy of all edges.
func (c *Chain) Edges() []Edge { return slices.Clone(c.edges) }

// Index returns the arena index of id.
func (c *Chain) Index(id nuclide.ID) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Contains reports whether id is a node of the chain.
func (c *Chain) Contains(id nuclide.ID) bool {
	_, ok := c.index[id]
	return ok
}

// Lookup returns the node for id.
func (c *Chain) Lookup(id nuclide.ID) (Node, bool) {
	i, ok := c.index[id]
	if !ok {
		return Node{}, false
	}
	return c.nodes[i].clone(), true
}

// Roots returns the root identifiers in canonical order.
func (c *Chain) Roots() []nuclide.ID {
	out := make([]nuclide.ID, len(c.roots))
	for i, r := range c.roots {
		out[i] = c.nodes[r].ID
	}
	return out
}

// IsRoot reports whether id is one of the chain's roots.
func (c *Chain) IsRoot(id nuclide.ID) bool {
	i, ok := c.index[id]
	return ok && slices.Contains(c.roots, i)
}

// Order returns node indices in topological order: every parent precedes
// its daughters.
func (c *Chain) Order() []int { return slices.Clone(c.order) }

// Layers returns nuclides grouped by generation. Layer 0 holds nodes with
// no incoming edge; every other node sits one past its deepest parent.
func (c *Chain) Layers() [][]nuclide.ID {
	out := make([][]nuclide.ID, len(c.layers))
	for i, layer := range c.layers {
		ids := make([]nuclide.ID, len(layer))
		for j, n := range layer {
			ids[j] = c.nodes[n].ID
		}
		out[i] = ids
	}
	return out
}

// Warnings returns consistency findings gathered while building.
func (c *Chain) Warnings() []ConsistencyWarning { return slices.Clone(c.warnings) }

// Missing returns daughters that had no datasheet, in canonical order.
func (c *Chain) Missing() []nuclide.ID { return slices.Clone(c.missing) }

// UnknownDecayConstants returns radioactive nodes whose half-life was not
// reported. Such chains cannot be solved.
func (c *Chain) UnknownDecayConstants() []nuclide.ID {
	var out []nuclide.ID
	for _, n := range c.nodes {
		if !n.lambdaKnown {
			out = append(out, n.ID)
		}
	}
	return out
}

// Identity returns a content hash of the chain's structure and decay
// constants. Chains built from the same data and roots share an identity.
func (c *Chain) Identity() uint64 { return c.identity }

// DecayConstants returns every node's decay constant in arena order, with
// unknown constants reported as NaN.
func (c *Chain) DecayConstants() []float64 {
	out := make([]float64, len(c.nodes))
	for i, n := range c.nodes {
		if n.lambdaKnown {
			out[i] = n.lambda
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// WithHalfLife returns a copy of the chain in which id has the given
// half-life in seconds. The receiver is unchanged.
func (c *Chain) WithHalfLife(id nuclide.ID, seconds float64) (*Chain, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInChain, id)
	}
	if !(seconds > 0) || math.IsInf(seconds, 1) {
		return nil, ErrInvalidHalfLife
	}
	if c.nodes[i].Stable() {
		return nil, ErrInvalidHalfLife
	}

	cp := *c
	cp.nodes = make([]Node, len(c.nodes))
	for k := range c.nodes {
		cp.nodes[k] = c.nodes[k].clone()
	}
	cp.nodes[i].lambda = math.Ln2 / seconds
	cp.nodes[i].lambdaKnown = true
	cp.identity = computeIdentity(&cp)
	return &cp, nil
}
