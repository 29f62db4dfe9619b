package query

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/nuclide"
)

const (
	keyPrefix    = "tl"
	keySeparator = ":"
)

// TimelineKey identifies a solve: chain content, initial inventory, time
// grid and the solver's degeneracy epsilon.
type TimelineKey struct {
	Chain     uint64
	Inventory uint64
	Times     uint64
	Epsilon   uint64
}

// NewTimelineKey derives the cache key for solving ch from inv on times.
func NewTimelineKey(ch *chain.Chain, inv bateman.Inventory, times []float64, epsilon float64) TimelineKey {
	return TimelineKey{
		Chain:     ch.Identity(),
		Inventory: inv.Hash(),
		Times:     hashTimes(times),
		Epsilon:   math.Float64bits(epsilon),
	}
}

// String renders the key for the cache and single-flight group.
func (k TimelineKey) String() string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	for _, v := range []uint64{k.Chain, k.Inventory, k.Times, k.Epsilon} {
		b.WriteString(keySeparator)
		b.WriteString(strconv.FormatUint(v, 16))
	}
	return b.String()
}

func hashTimes(times []float64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(times)))
	_, _ = d.Write(buf[:])
	for _, t := range times {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(t))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// rootsKey is the chain LRU key: canonical, order-insensitive root names.
func rootsKey(roots []nuclide.ID) string {
	names := make([]string, len(roots))
	for i, r := range roots {
		names[i] = r.String()
	}
	return strings.Join(names, ",")
}
