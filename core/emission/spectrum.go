package emission

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/adalundhe/halflife/core/nuclide"
)

var (
	// ErrInvalidDividers indicates histogram dividers that are too few,
	// unsorted or non-finite.
	ErrInvalidDividers = errors.New("invalid histogram dividers")

	// ErrInvalidBins indicates a non-positive bin count or empty range.
	ErrInvalidBins = errors.New("invalid bin specification")
)

// LineCount is one emission line with its expected count over a window.
type LineCount struct {
	Line  nuclide.EmissionLine
	Count float64
}

// Energy returns the line energy in keV.
func (lc LineCount) Energy() float64 { return lc.Line.Energy.Value }

// Spectrum holds expected emission counts over one window.
type Spectrum struct {
	Window Window

	// Counts maps each emitting line to its expected count.
	Counts map[nuclide.LineKey]float64

	// Lines lists the same counts sorted by energy, then by line key.
	Lines []LineCount

	// Decays maps each contributing nuclide to its number of decays.
	Decays map[nuclide.ID]float64
}

func newSpectrum(w Window) *Spectrum {
	return &Spectrum{
		Window: w,
		Counts: make(map[nuclide.LineKey]float64),
		Decays: make(map[nuclide.ID]float64),
	}
}

func (s *Spectrum) add(line nuclide.EmissionLine, count float64) {
	key := line.Key()
	if _, ok := s.Counts[key]; !ok {
		s.Lines = append(s.Lines, LineCount{Line: line})
	}
	s.Counts[key] += count
}

func (s *Spectrum) finish() {
	for i := range s.Lines {
		s.Lines[i].Count = s.Counts[s.Lines[i].Line.Key()]
	}
	slices.SortStableFunc(s.Lines, compareLines)
}

func compareLines(a, b LineCount) int {
	if c := cmp.Compare(a.Energy(), b.Energy()); c != 0 {
		return c
	}
	if c := nuclide.Compare(a.Line.Nuclide, b.Line.Nuclide); c != 0 {
		return c
	}
	return cmp.Compare(a.Line.Index, b.Line.Index)
}

// Total returns the sum of all line counts.
func (s *Spectrum) Total() float64 {
	return floats.Sum(s.counts())
}

// TotalDecays returns the sum of decays over all nuclides.
func (s *Spectrum) TotalDecays() float64 {
	sum := 0.0
	for _, d := range s.Decays {
		sum += d
	}
	return sum
}

// Len returns the number of lines with a count.
func (s *Spectrum) Len() int { return len(s.Lines) }

func (s *Spectrum) energies() []float64 {
	out := make([]float64, len(s.Lines))
	for i, lc := range s.Lines {
		out[i] = lc.Energy()
	}
	return out
}

func (s *Spectrum) counts() []float64 {
	out := make([]float64, len(s.Lines))
	for i, lc := range s.Lines {
		out[i] = lc.Count
	}
	return out
}

// Filter returns a spectrum holding only lines of the given types. Decays
// are carried over unchanged. With no types the copy is complete.
func (s *Spectrum) Filter(types ...nuclide.RadiationType) *Spectrum {
	out := newSpectrum(s.Window)
	for id, d := range s.Decays {
		out.Decays[id] = d
	}
	for _, lc := range s.Lines {
		if !matchesType(lc.Line.Type, types) {
			continue
		}
		out.Lines = append(out.Lines, lc)
		out.Counts[lc.Line.Key()] = lc.Count
	}
	return out
}

// Histogram bins line counts by energy. Bin i covers
// [dividers[i], dividers[i+1]); lines outside [dividers[0], dividers[n-1])
// are left out.
func (s *Spectrum) Histogram(dividers []float64) ([]float64, error) {
	if err := checkDividers(dividers); err != nil {
		return nil, err
	}

	lo, hi := dividers[0], dividers[len(dividers)-1]
	var x, weights []float64
	for _, lc := range s.Lines {
		e := lc.Energy()
		if e < lo || e >= hi {
			continue
		}
		x = append(x, e)
		weights = append(weights, lc.Count)
	}

	return stat.Histogram(nil, dividers, x, weights), nil
}

func checkDividers(dividers []float64) error {
	if len(dividers) < 2 {
		return fmt.Errorf("%w: need at least two, got %d", ErrInvalidDividers, len(dividers))
	}
	for _, d := range dividers {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: non-finite divider %g", ErrInvalidDividers, d)
		}
	}
	if !sort.Float64sAreSorted(dividers) {
		return fmt.Errorf("%w: not sorted", ErrInvalidDividers)
	}
	return nil
}

// EnergyDividers returns bins+1 evenly spaced dividers over [lo, hi].
func EnergyDividers(lo, hi float64, bins int) ([]float64, error) {
	if bins < 1 || !(hi > lo) || math.IsInf(hi, 0) || math.IsInf(lo, 0) {
		return nil, fmt.Errorf("%w: %d bins over [%g, %g]", ErrInvalidBins, bins, lo, hi)
	}
	return floats.Span(make([]float64, bins+1), lo, hi), nil
}

// AutoDividers spans the spectrum's energy range with bins equal bins. The
// top divider is nudged up so the highest line falls inside the last bin.
func (s *Spectrum) AutoDividers(bins int) ([]float64, error) {
	if len(s.Lines) == 0 {
		return nil, fmt.Errorf("%w: empty spectrum", ErrInvalidBins)
	}
	e := s.energies()
	lo, hi := floats.Min(e), floats.Max(e)
	if hi == lo {
		hi = lo + 1
	}
	return EnergyDividers(lo, math.Nextafter(hi, math.Inf(1)), bins)
}

// Strongest returns up to n lines with the highest counts, ties broken by
// energy.
func (s *Spectrum) Strongest(n int) []LineCount {
	out := slices.Clone(s.Lines)
	slices.SortStableFunc(out, func(a, b LineCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return compareLines(a, b)
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
