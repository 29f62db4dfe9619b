package chain

import (
	"fmt"

	"github.com/adalundhe/halflife/core/nuclide"
)

// PathFunc receives one directed path as node indices, starting at the
// walk's origin, and the product of edge branchings along it. The slice is
// reused between calls; copy it to keep it. Returning false stops the walk.
type PathFunc func(path []int, branching float64) bool

// WalkPaths calls fn for every directed path starting at node from,
// including the single-node path. Parallel edges between the same pair of
// nodes yield separate paths.
func (c *Chain) WalkPaths(from int, fn PathFunc) {
	if from < 0 || from >= len(c.nodes) {
		return
	}
	path := make([]int, 0, len(c.layers)+1)
	c.walk(from, 1, path, fn)
}

func (c *Chain) walk(i int, branching float64, path []int, fn PathFunc) bool {
	path = append(path, i)
	if !fn(path, branching) {
		return false
	}
	for _, e := range c.nodes[i].Out {
		edge := c.edges[e]
		if !c.walk(edge.To, branching*edge.Branching, path, fn) {
			return false
		}
	}
	return true
}

// Path is one directed path between two nuclides.
type Path struct {
	Nodes     []nuclide.ID
	Branching float64
}

// Paths returns every directed path from one nuclide to another.
func (c *Chain) Paths(from, to nuclide.ID) ([]Path, error) {
	fi, ok := c.index[from]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInChain, from)
	}
	ti, ok := c.index[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInChain, to)
	}

	var out []Path
	c.WalkPaths(fi, func(path []int, branching float64) bool {
		if path[len(path)-1] != ti {
			return true
		}
		ids := make([]nuclide.ID, len(path))
		for k, n := range path {
			ids[k] = c.nodes[n].ID
		}
		out = append(out, Path{Nodes: ids, Branching: branching})
		return true
	})
	return out, nil
}

// Descendants returns the indices reachable from node from, excluding it,
// in topological order.
func (c *Chain) Descendants(from int) []int {
	reach := make([]bool, len(c.nodes))
	var mark func(int)
	mark = func(i int) {
		for _, e := range c.nodes[i].Out {
			to := c.edges[e].To
			if !reach[to] {
				reach[to] = true
				mark(to)
			}
		}
	}
	mark(from)

	out := make([]int, 0)
	for _, i := range c.order {
		if reach[i] {
			out = append(out, i)
		}
	}
	return out
}
