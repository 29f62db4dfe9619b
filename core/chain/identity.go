package chain

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// computeIdentity hashes everything that affects a solve: node identities,
// decay constants, edges with their branching, and roots.
func computeIdentity(c *Chain) uint64 {
	d := xxhash.New()
	var buf [8]byte

	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}

	putUint(uint64(len(c.nodes)))
	for _, n := range c.nodes {
		_, _ = d.WriteString(n.ID.String())
		putUint(math.Float64bits(n.lambda))
		flags := uint64(0)
		if n.lambdaKnown {
			flags |= 1
		}
		if n.Unresolved {
			flags |= 2
		}
		putUint(flags)
	}

	putUint(uint64(len(c.edges)))
	for _, e := range c.edges {
		putUint(uint64(e.From))
		putUint(uint64(e.To))
		putUint(math.Float64bits(e.Branching))
	}

	putUint(uint64(len(c.roots)))
	for _, r := range c.roots {
		putUint(uint64(r))
	}

	return d.Sum64()
}
