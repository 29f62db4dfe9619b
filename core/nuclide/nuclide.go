package nuclide

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrInvalidNuclide indicates a nuclide spec failed validation.
	ErrInvalidNuclide = errors.New("invalid nuclide")
)

// =============================================================================
// Decay Mode
// =============================================================================

// DecayMode is an edge from a parent nuclide to a daughter nuclide.
// Branching is a fraction of parent decays in [0, 1].
type DecayMode struct {
	Parent    ID
	Daughter  ID
	Type      DecayType
	Branching Measurement
	QValue    Measurement // keV
}

// ParentRef is a "possible parent" declared on a daughter's datasheet.
// Branching is the fraction of the parent's decays the daughter claims.
type ParentRef struct {
	Parent    ID
	Type      DecayType
	Branching Measurement
}

// =============================================================================
// Emission Line
// =============================================================================

// Level is an optional nuclear level index.
type Level struct {
	Index int
	Known bool
}

// EmissionLine is one radiation emitted per decay of its owning nuclide.
// Energy is in keV and Intensity in % per decay, as reported.
type EmissionLine struct {
	Nuclide    ID
	Index      int
	Energy     Measurement
	Intensity  Measurement
	Type       RadiationType
	Code       string
	Origin     ID
	LevelStart Level
	LevelEnd   Level
}

// LineKey identifies an emission line within a catalog.
type LineKey struct {
	Nuclide ID
	Index   int
}

// Key returns the line's stable key.
func (l EmissionLine) Key() LineKey {
	return LineKey{Nuclide: l.Nuclide, Index: l.Index}
}

func (k LineKey) String() string {
	return fmt.Sprintf("%s#%d", k.Nuclide, k.Index)
}

// =============================================================================
// Nuclide
// =============================================================================

// Spec carries the fields of a nuclide before validation.
type Spec struct {
	ID                    ID
	Element               string
	Z                     int
	HalfLife              Measurement // seconds
	HalfLifeYears         Measurement // as reported, informational
	ReportedDecayConstant Measurement // 1/s, as reported
	SpecificActivity      Measurement // Bq/g
	Reference             string
	Stable                bool
	Daughters             []DecayMode
	Parents               []ParentRef
	Lines                 []EmissionLine
}

// Nuclide holds one nuclide's decay properties. It is immutable once
// constructed; accessors return copies.
type Nuclide struct {
	id               ID
	element          string
	z                int
	halfLife         Measurement
	halfLifeYears    Measurement
	reportedLambda   Measurement
	specificActivity Measurement
	reference        string
	stable           bool
	daughters        []DecayMode
	parents          []ParentRef
	lines            []EmissionLine
}

// New validates spec and returns an immutable Nuclide.
func New(spec Spec) (*Nuclide, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	n := &Nuclide{
		id:               spec.ID,
		element:          spec.Element,
		z:                spec.Z,
		halfLife:         spec.HalfLife,
		halfLifeYears:    spec.HalfLifeYears,
		reportedLambda:   spec.ReportedDecayConstant,
		specificActivity: spec.SpecificActivity,
		reference:        spec.Reference,
		stable:           spec.Stable,
		daughters:        slices.Clone(spec.Daughters),
		parents:          slices.Clone(spec.Parents),
		lines:            slices.Clone(spec.Lines),
	}

	for i := range n.daughters {
		n.daughters[i].Parent = n.id
	}
	for i := range n.lines {
		n.lines[i].Nuclide = n.id
		n.lines[i].Index = i
	}

	return n, nil
}

func validateSpec(spec Spec) error {
	if spec.ID.IsZero() {
		return fmt.Errorf("%w: missing identifier", ErrInvalidNuclide)
	}
	if spec.Z < 0 {
		return fmt.Errorf("%w: %s: negative Z %d", ErrInvalidNuclide, spec.ID, spec.Z)
	}
	if spec.Stable && len(spec.Daughters) > 0 {
		return fmt.Errorf("%w: %s: stable nuclide declares daughters", ErrInvalidNuclide, spec.ID)
	}
	if spec.HalfLife.Known && !(spec.HalfLife.Value > 0) {
		return fmt.Errorf("%w: %s: half-life must be positive", ErrInvalidNuclide, spec.ID)
	}
	for _, d := range spec.Daughters {
		if d.Daughter.IsZero() {
			return fmt.Errorf("%w: %s: daughter without identifier", ErrInvalidNuclide, spec.ID)
		}
		if d.Daughter == spec.ID {
			return fmt.Errorf("%w: %s: decays to itself", ErrInvalidNuclide, spec.ID)
		}
		if d.Branching.Known && (d.Branching.Value < 0 || d.Branching.Value > 1) {
			return fmt.Errorf("%w: %s: branching to %s outside [0,1]", ErrInvalidNuclide, spec.ID, d.Daughter)
		}
	}
	for i, l := range spec.Lines {
		if !l.Energy.Known || l.Energy.Value < 0 {
			return fmt.Errorf("%w: %s: line %d has invalid energy", ErrInvalidNuclide, spec.ID, i)
		}
		if l.Intensity.Known && l.Intensity.Value < 0 {
			return fmt.Errorf("%w: %s: line %d has negative intensity", ErrInvalidNuclide, spec.ID, i)
		}
	}
	return nil
}

// ID returns the nuclide identifier
func (n *Nuclide) ID() ID { return n.id }

// Element returns the element name
func (n *Nuclide) Element() string { return n.element }

// Z returns the atomic number
func (n *Nuclide) Z() int { return n.z }

// HalfLife returns the half-life in seconds
func (n *Nuclide) HalfLife() Measurement { return n.halfLife }

// HalfLifeYears returns the half-life in years as reported
func (n *Nuclide) HalfLifeYears() Measurement { return n.halfLifeYears }

// ReportedDecayConstant returns the datasheet's decay constant in 1/s
func (n *Nuclide) ReportedDecayConstant() Measurement { return n.reportedLambda }

// SpecificActivity returns the specific activity in Bq/g
func (n *Nuclide) SpecificActivity() Measurement { return n.specificActivity }

// Reference returns the datasheet citation
func (n *Nuclide) Reference() string { return n.reference }

// IsStable reports whether the nuclide does not decay
func (n *Nuclide) IsStable() bool { return n.stable }

// DecayConstant returns ln(2)/half-life in 1/s. Stable nuclides report
// (0, true); an unreported half-life reports (0, false).
func (n *Nuclide) DecayConstant() (float64, bool) {
	if n.stable {
		return 0, true
	}
	if !n.halfLife.Known {
		return 0, false
	}
	return math.Ln2 / n.halfLife.Value, true
}

// Daughters returns a copy of the decay modes
func (n *Nuclide) Daughters() []DecayMode { return slices.Clone(n.daughters) }

// Parents returns a copy of the declared possible parents
func (n *Nuclide) Parents() []ParentRef { return slices.Clone(n.parents) }

// Lines returns a copy of the emission lines, sorted by increasing energy
func (n *Nuclide) Lines() []EmissionLine { return slices.Clone(n.lines) }

// LineCount returns the number of emission lines
func (n *Nuclide) LineCount() int { return len(n.lines) }

// Line returns the emission line at index i
func (n *Nuclide) Line(i int) (EmissionLine, bool) {
	if i < 0 || i >= len(n.lines) {
		return EmissionLine{}, false
	}
	return n.lines[i], true
}

// ParentRef returns the declared parent entry for parent, if any.
func (n *Nuclide) ParentRef(parent ID, typ DecayType) (ParentRef, bool) {
	var fallback *ParentRef
	for i := range n.parents {
		p := n.parents[i]
		if p.Parent != parent {
			continue
		}
		if p.Type == typ {
			return p, true
		}
		if fallback == nil {
			fallback = &n.parents[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return ParentRef{}, false
}

func (n *Nuclide) String() string {
	return n.id.String()
}
