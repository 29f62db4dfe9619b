package chain

import (
	"errors"
	"fmt"
	"strings"

	coreerrors "github.com/adalundhe/halflife/core/errors"
	"github.com/adalundhe/halflife/core/nuclide"
)

var (
	// ErrCycle indicates daughter links revisit a node on the current path.
	ErrCycle = errors.New("decay chain cycle")

	// ErrMissingDaughter indicates a referenced daughter has no datasheet.
	ErrMissingDaughter = errors.New("missing daughter datasheet")

	// ErrUnknownRoot indicates a root nuclide is absent from the catalog.
	ErrUnknownRoot = errors.New("unknown root nuclide")

	// ErrNoRoots indicates Build was called without roots.
	ErrNoRoots = errors.New("decay chain requires at least one root")

	// ErrNotInChain indicates a nuclide is not a node of the chain.
	ErrNotInChain = errors.New("nuclide not in chain")

	// ErrInvalidHalfLife indicates a half-life override is not a positive finite number.
	ErrInvalidHalfLife = errors.New("invalid half-life")
)

// =============================================================================
// CycleError
// =============================================================================

// CycleError reports the closed path of a cyclic daughter reference. The
// first and last elements of Path are the same nuclide.
type CycleError struct {
	Path []nuclide.ID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Tier marks a cycle as fatal for the chain being built.
func (e *CycleError) Tier() coreerrors.ErrorTier { return coreerrors.TierFatal }

// =============================================================================
// MissingDaughterError
// =============================================================================

// MissingDaughterError reports a daughter referenced by Parent whose
// datasheet is not in the catalog. The chain is still built, with the
// daughter as an unresolved stable sink.
type MissingDaughterError struct {
	Parent   nuclide.ID
	Daughter nuclide.ID
}

func (e *MissingDaughterError) Error() string {
	return fmt.Sprintf("%s: %s (daughter of %s)", ErrMissingDaughter, e.Daughter, e.Parent)
}

func (e *MissingDaughterError) Unwrap() error { return ErrMissingDaughter }

// Tier marks a missing daughter as recoverable: load it and rebuild.
func (e *MissingDaughterError) Tier() coreerrors.ErrorTier { return coreerrors.TierRecoverable }

// MissingDaughters extracts every MissingDaughterError from err, which may
// be a single error or a join.
func MissingDaughters(err error) []*MissingDaughterError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*MissingDaughterError
		for _, e := range joined.Unwrap() {
			out = append(out, MissingDaughters(e)...)
		}
		return out
	}
	var md *MissingDaughterError
	if errors.As(err, &md) {
		return []*MissingDaughterError{md}
	}
	return nil
}

// =============================================================================
// ConsistencyWarning
// =============================================================================

// ConsistencyWarning flags cross-datasheet disagreements. The parent's
// declared branching is always the one used.
type ConsistencyWarning struct {
	Parent   nuclide.ID
	Daughter nuclide.ID
	Msg      string
}

func (w ConsistencyWarning) Error() string {
	if w.Daughter.IsZero() {
		return fmt.Sprintf("%s: %s", w.Parent, w.Msg)
	}
	return fmt.Sprintf("%s -> %s: %s", w.Parent, w.Daughter, w.Msg)
}

// Tier marks consistency findings as warnings.
func (w ConsistencyWarning) Tier() coreerrors.ErrorTier { return coreerrors.TierWarning }
