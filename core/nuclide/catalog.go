package nuclide

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDuplicateNuclide indicates two datasheets describe the same nuclide.
var ErrDuplicateNuclide = errors.New("duplicate nuclide")

// Catalog is the process-wide, read-only set of loaded nuclides. It is never
// mutated after construction, so it is shared between goroutines without
// locking.
type Catalog struct {
	byID map[ID]*Nuclide
	ids  []ID
}

// NewCatalog builds a catalog from nuclides. Duplicate identifiers fail.
func NewCatalog(nuclides ...*Nuclide) (*Catalog, error) {
	c := &Catalog{
		byID: make(map[ID]*Nuclide, len(nuclides)),
		ids:  make([]ID, 0, len(nuclides)),
	}
	for _, n := range nuclides {
		if n == nil {
			continue
		}
		if _, exists := c.byID[n.ID()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNuclide, n.ID())
		}
		c.byID[n.ID()] = n
		c.ids = append(c.ids, n.ID())
	}
	slices.SortFunc(c.ids, Compare)
	return c, nil
}

// With returns a new catalog holding this catalog's nuclides plus extra.
// The receiver is unchanged; used by callers that fetch a missing datasheet
// and retry.
func (c *Catalog) With(extra ...*Nuclide) (*Catalog, error) {
	all := make([]*Nuclide, 0, c.Len()+len(extra))
	all = append(all, c.Nuclides()...)
	all = append(all, extra...)
	return NewCatalog(all...)
}

// Get returns the nuclide for id.
func (c *Catalog) Get(id ID) (*Nuclide, bool) {
	if c == nil {
		return nil, false
	}
	n, ok := c.byID[id]
	return n, ok
}

// Has reports whether the catalog holds id.
func (c *Catalog) Has(id ID) bool {
	_, ok := c.Get(id)
	return ok
}

// Len returns the number of nuclides.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// IDs returns the identifiers in canonical order.
func (c *Catalog) IDs() []ID {
	if c == nil {
		return nil
	}
	return slices.Clone(c.ids)
}

// Nuclides returns the nuclides in canonical order.
func (c *Catalog) Nuclides() []*Nuclide {
	result := make([]*Nuclide, 0, c.Len())
	for _, id := range c.IDs() {
		result = append(result, c.byID[id])
	}
	return result
}

// Line resolves a line key.
func (c *Catalog) Line(key LineKey) (EmissionLine, bool) {
	n, ok := c.Get(key.Nuclide)
	if !ok {
		return EmissionLine{}, false
	}
	return n.Line(key.Index)
}

// Lines returns every emission line in the catalog.
func (c *Catalog) Lines() []EmissionLine {
	var result []EmissionLine
	for _, n := range c.Nuclides() {
		result = append(result, n.lines...)
	}
	return result
}
