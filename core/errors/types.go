// Package errors implements the 3-tier error taxonomy shared by the decay engine.
package errors

import (
	"errors"
	"fmt"
)

// ErrorTier represents the classification tier for errors.
// Each tier has defined behavior for whether the surrounding operation
// survives and whether the caller can act on it.
type ErrorTier int

const (
	// TierWarning indicates a non-fatal condition attached to a successful result.
	// Examples: precision loss across widely spread decay constants.
	TierWarning ErrorTier = iota

	// TierRecoverable indicates an error the caller can fix and retry.
	// Examples: a daughter datasheet missing from the catalog.
	TierRecoverable

	// TierFatal indicates an error that aborts the operation that raised it.
	// Examples: malformed datasheet, cyclic chain, negative query time.
	TierFatal
)

var tierNames = map[ErrorTier]string{
	TierWarning:     "warning",
	TierRecoverable: "recoverable",
	TierFatal:       "fatal",
}

func (t ErrorTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// TierBehavior defines the handling behavior for an error tier.
type TierBehavior struct {
	// AbortsOperation indicates the operation returned no usable result.
	AbortsOperation bool

	// CallerRetryable indicates the caller may fix its input and retry.
	// The engine itself never retries.
	CallerRetryable bool

	// ShouldReport indicates the condition belongs in user-facing output.
	ShouldReport bool
}

// DefaultBehaviors returns the default behavior for each error tier.
func DefaultBehaviors() map[ErrorTier]TierBehavior {
	return map[ErrorTier]TierBehavior{
		TierWarning: {
			AbortsOperation: false,
			CallerRetryable: false,
			ShouldReport:    true,
		},
		TierRecoverable: {
			AbortsOperation: false,
			CallerRetryable: true,
			ShouldReport:    true,
		},
		TierFatal: {
			AbortsOperation: true,
			CallerRetryable: false,
			ShouldReport:    true,
		},
	}
}

// Tiered is implemented by domain errors that know their own tier.
type Tiered interface {
	error
	Tier() ErrorTier
}

// TieredError wraps an error with tier classification.
type TieredError struct {
	Tier       ErrorTier
	Message    string
	Underlying error
	Context    map[string]string
}

// Error implements the error interface.
func (e *TieredError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Tier, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Tier, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TieredError) Unwrap() error {
	return e.Underlying
}

// NewTieredError creates a new TieredError with the given tier and message.
func NewTieredError(tier ErrorTier, message string, underlying error) *TieredError {
	return &TieredError{
		Tier:       tier,
		Message:    message,
		Underlying: underlying,
		Context:    make(map[string]string),
	}
}

// WithContext adds context key-value pairs to the error.
func (e *TieredError) WithContext(key, value string) *TieredError {
	e.Context[key] = value
	return e
}

// GetTier extracts the ErrorTier from an error, defaulting to Fatal.
// Joined errors report the most severe tier among their members.
func GetTier(err error) ErrorTier {
	if err == nil {
		return TierWarning
	}

	switch e := err.(type) {
	case *TieredError:
		return e.Tier
	case Tiered:
		return e.Tier()
	case interface{ Unwrap() []error }:
		return maxTier(e.Unwrap())
	}

	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}

	var tiered Tiered
	if errors.As(err, &tiered) {
		return tiered.Tier()
	}

	return TierFatal
}

func maxTier(errs []error) ErrorTier {
	tier := TierWarning
	for _, err := range errs {
		if err == nil {
			continue
		}
		if t := GetTier(err); t > tier {
			tier = t
		}
	}
	return tier
}

// GetBehavior returns the behavior for an error's tier.
func GetBehavior(err error) TierBehavior {
	return DefaultBehaviors()[GetTier(err)]
}

// IsRecoverable reports whether err leaves a usable result the caller
// can improve by fixing its input and retrying.
func IsRecoverable(err error) bool {
	return err != nil && GetTier(err) == TierRecoverable
}

// IsWarning reports whether err is only a warning.
func IsWarning(err error) bool {
	return err != nil && GetTier(err) == TierWarning
}

// WrapWithTier wraps an error with a tier classification.
func WrapWithTier(tier ErrorTier, message string, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap TieredErrors
	var te *TieredError
	if errors.As(err, &te) {
		return &TieredError{
			Tier:       te.Tier,
			Message:    message,
			Underlying: err,
			Context:    te.Context,
		}
	}

	return NewTieredError(tier, message, err)
}
