package bateman

import (
	"errors"
	"fmt"
	"math"
	"strings"

	coreerrors "github.com/adalundhe/halflife/core/errors"
	"github.com/adalundhe/halflife/core/nuclide"
)

var (
	// ErrNegativeTime indicates a query time below zero or not finite.
	ErrNegativeTime = errors.New("time must be finite and non-negative")

	// ErrUnresolvedDecayConstant indicates a radioactive node has no known half-life.
	ErrUnresolvedDecayConstant = errors.New("unresolved decay constant")

	// ErrInvalidInventory indicates a negative or non-finite atom count.
	ErrInvalidInventory = errors.New("invalid inventory")

	// ErrNilChain indicates Solve was called without a chain.
	ErrNilChain = errors.New("nil decay chain")

	// ErrInvertedInterval indicates an integration interval with end before start.
	ErrInvertedInterval = errors.New("interval end precedes start")
)

// UnresolvedError names the nodes whose half-life was not reported.
type UnresolvedError struct {
	IDs []nuclide.ID
}

func (e *UnresolvedError) Error() string {
	names := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		names[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", ErrUnresolvedDecayConstant, strings.Join(names, ", "))
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolvedDecayConstant }

// Tier marks an unresolved constant as fatal to the query.
func (e *UnresolvedError) Tier() coreerrors.ErrorTier { return coreerrors.TierFatal }

func negativeTime(t float64) error {
	return fmt.Errorf("%w: %g", ErrNegativeTime, t)
}

// CheckTime returns ErrNegativeTime unless t is finite and non-negative.
func CheckTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return negativeTime(t)
	}
	return nil
}
