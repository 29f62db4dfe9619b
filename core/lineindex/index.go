// Package lineindex identifies observed peaks by searching catalog
// emission lines within an energy window.
package lineindex

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/adalundhe/halflife/core/nuclide"
)

const (
	EnergyFieldName  = "energy"
	TypeFieldName    = "type"
	NuclideFieldName = "nuclide"

	defaultBatchSize = 500
)

var (
	// ErrIndexClosed indicates a search on a closed index.
	ErrIndexClosed = errors.New("index is closed")

	// ErrInvalidEnergy indicates a negative or non-finite energy.
	ErrInvalidEnergy = errors.New("invalid energy")

	// ErrInvalidTolerance indicates a negative or non-finite tolerance.
	ErrInvalidTolerance = errors.New("invalid tolerance")
)

// Match is a catalog line within tolerance of an observed energy.
type Match struct {
	Line nuclide.EmissionLine

	// Delta is the line energy minus the observed energy, in keV.
	Delta float64
}

// Index is an in-memory energy index over the lines of one catalog.
type Index struct {
	index  bleve.Index
	lines  map[string]nuclide.EmissionLine
	mu     sync.RWMutex
	closed bool
}

func buildMapping() mapping.IndexMapping {
	energy := bleve.NewNumericFieldMapping()
	energy.Store = false

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(EnergyFieldName, energy)
	doc.AddFieldMappingsAt(TypeFieldName, keyword)
	doc.AddFieldMappingsAt(NuclideFieldName, keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Build indexes every line of cat with a known energy.
func Build(cat *nuclide.Catalog) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	x := &Index{
		index: idx,
		lines: make(map[string]nuclide.EmissionLine),
	}

	batch := idx.NewBatch()
	for _, line := range cat.Lines() {
		if !line.Energy.Known {
			continue
		}
		docID := line.Key().String()
		x.lines[docID] = line
		if err := batch.Index(docID, lineDocument(line)); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index %s: %w", docID, err)
		}
		if batch.Size() >= defaultBatchSize {
			if err := x.commit(batch); err != nil {
				return nil, err
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := x.commit(batch); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (x *Index) commit(batch *bleve.Batch) error {
	if err := x.index.Batch(batch); err != nil {
		_ = x.index.Close()
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func lineDocument(line nuclide.EmissionLine) map[string]any {
	return map[string]any{
		EnergyFieldName:  line.Energy.Value,
		TypeFieldName:    line.Type.String(),
		NuclideFieldName: line.Nuclide.String(),
	}
}

// Len returns the number of indexed lines.
func (x *Index) Len() int { return len(x.lines) }

// Identify returns the lines within tolerance keV of energy, optionally
// restricted to the given radiation types, nearest first. Equal distances
// are ordered by decreasing intensity.
func (x *Index) Identify(energy, tolerance float64, types ...nuclide.RadiationType) ([]Match, error) {
	if math.IsNaN(energy) || math.IsInf(energy, 0) || energy < 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidEnergy, energy)
	}
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidTolerance, tolerance)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, ErrIndexClosed
	}
	if len(x.lines) == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(buildQuery(energy, tolerance, types), len(x.lines), 0, false)
	result, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		line, ok := x.lines[hit.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Line: line, Delta: line.Energy.Value - energy})
	}
	slices.SortFunc(matches, compareMatches)
	return matches, nil
}

func buildQuery(energy, tolerance float64, types []nuclide.RadiationType) query.Query {
	lo, hi := energy-tolerance, energy+tolerance
	inclusive := true
	rangeQuery := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
	rangeQuery.SetField(EnergyFieldName)

	if len(types) == 0 {
		return rangeQuery
	}

	boolQuery := bleve.NewBooleanQuery()
	boolQuery.AddMust(rangeQuery)
	boolQuery.AddMust(typesQuery(types))
	return boolQuery
}

func typesQuery(types []nuclide.RadiationType) query.Query {
	if len(types) == 1 {
		termQuery := bleve.NewTermQuery(types[0].String())
		termQuery.SetField(TypeFieldName)
		return termQuery
	}

	disjunction := bleve.NewDisjunctionQuery()
	for _, t := range types {
		termQuery := bleve.NewTermQuery(t.String())
		termQuery.SetField(TypeFieldName)
		disjunction.AddQuery(termQuery)
	}
	return disjunction
}

func compareMatches(a, b Match) int {
	if c := cmp.Compare(math.Abs(a.Delta), math.Abs(b.Delta)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Line.Intensity.Value, a.Line.Intensity.Value); c != 0 {
		return c
	}
	return cmp.Compare(a.Line.Key().String(), b.Line.Key().String())
}

// Close releases the index. It is idempotent.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	return x.index.Close()
}
