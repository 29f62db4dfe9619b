package bateman

import (
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/adalundhe/halflife/core/nuclide"
)

// Inventory is the number of atoms of each nuclide at t = 0. It is copied
// on construction and never modified afterwards.
type Inventory struct {
	atoms map[nuclide.ID]float64
	ids   []nuclide.ID
}

// NewInventory validates and copies atoms. Zero entries are dropped.
func NewInventory(atoms map[nuclide.ID]float64) (Inventory, error) {
	inv := Inventory{atoms: make(map[nuclide.ID]float64, len(atoms))}
	for id, n := range atoms {
		if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
			return Inventory{}, fmt.Errorf("%w: %s has %g atoms", ErrInvalidInventory, id, n)
		}
		if n == 0 {
			continue
		}
		inv.atoms[id] = n
		inv.ids = append(inv.ids, id)
	}
	slices.SortFunc(inv.ids, nuclide.Compare)
	return inv, nil
}

// InventoryOf is a single-nuclide inventory.
func InventoryOf(id nuclide.ID, atoms float64) (Inventory, error) {
	return NewInventory(map[nuclide.ID]float64{id: atoms})
}

// Atoms returns the initial population of id.
func (inv Inventory) Atoms(id nuclide.ID) float64 { return inv.atoms[id] }

// IDs returns the populated nuclides in canonical order.
func (inv Inventory) IDs() []nuclide.ID { return slices.Clone(inv.ids) }

// Len returns the number of populated nuclides.
func (inv Inventory) Len() int { return len(inv.ids) }

// Total returns the total number of atoms.
func (inv Inventory) Total() float64 {
	sum := 0.0
	for _, id := range inv.ids {
		sum += inv.atoms[id]
	}
	return sum
}

// Map returns a copy of the populations.
func (inv Inventory) Map() map[nuclide.ID]float64 { return maps.Clone(inv.atoms) }

// Hash returns a content hash usable as a cache key component.
func (inv Inventory) Hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, id := range inv.ids {
		_, _ = d.WriteString(id.String())
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(inv.atoms[id]))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
