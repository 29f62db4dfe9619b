package chain

import (
	"slices"

	"github.com/adalundhe/halflife/core/nuclide"
)

// =============================================================================
// Topological Order
// =============================================================================

// topologicalOrder runs Kahn's algorithm over the arena. Ties are broken by
// arena index so the order is deterministic for a given build.
func topologicalOrder(c *Chain) ([]int, error) {
	inDegree := buildInDegree(c)
	queue := collectZeroInDegree(inDegree)
	order := processQueue(c, inDegree, queue)

	if len(order) != len(c.nodes) {
		return nil, &CycleError{Path: unorderedIDs(c, order)}
	}
	return order, nil
}

func buildInDegree(c *Chain) []int {
	inDegree := make([]int, len(c.nodes))
	for i, n := range c.nodes {
		inDegree[i] = len(n.In)
	}
	return inDegree
}

func collectZeroInDegree(inDegree []int) []int {
	queue := make([]int, 0)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	return queue
}

func processQueue(c *Chain, inDegree []int, queue []int) []int {
	order := make([]int, 0, len(c.nodes))
	for len(queue) > 0 {
		var i int
		i, queue = queue[0], queue[1:]
		order = append(order, i)
		for _, e := range c.nodes[i].Out {
			to := c.edges[e].To
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	return order
}

func unorderedIDs(c *Chain, order []int) []nuclide.ID {
	var ids []nuclide.ID
	for i, n := range c.nodes {
		if !slices.Contains(order, i) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// =============================================================================
// Layers
// =============================================================================

// computeLayers groups nodes by generation: a node's layer is one past the
// deepest of its parents.
func computeLayers(c *Chain, order []int) [][]int {
	layerOf := make([]int, len(c.nodes))
	maxLayer := 0
	for _, i := range order {
		layer := 0
		for _, e := range c.nodes[i].In {
			if l := layerOf[c.edges[e].From] + 1; l > layer {
				layer = l
			}
		}
		layerOf[i] = layer
		maxLayer = max(maxLayer, layer)
	}

	if len(order) == 0 {
		return nil
	}
	layers := make([][]int, maxLayer+1)
	for _, i := range order {
		layers[layerOf[i]] = append(layers[layerOf[i]], i)
	}
	for _, layer := range layers {
		slices.SortFunc(layer, func(a, b int) int {
			return nuclide.Compare(c.nodes[a].ID, c.nodes[b].ID)
		})
	}
	return layers
}
