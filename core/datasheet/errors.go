package datasheet

import (
	"errors"
	"fmt"

	coreerrors "github.com/adalundhe/halflife/core/errors"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrParse is matched by every datasheet parse failure.
	ErrParse = errors.New("datasheet parse error")

	// ErrNoPatterns indicates the loader was configured without file patterns.
	ErrNoPatterns = errors.New("no datasheet patterns configured")

	// ErrInvalidPattern indicates a file pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid datasheet pattern")

	// ErrNotDirectory indicates the datasheet path is not a directory.
	ErrNotDirectory = errors.New("datasheet path is not a directory")
)

// ParseError describes a structural deviation in one datasheet file.
// It is fatal to that nuclide and non-fatal to the catalog as a whole.
type ParseError struct {
	File  string
	Line  int
	Field string
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Field != "" {
		loc += ": " + e.Field
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

// Unwrap exposes ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// Tier classifies parse errors as fatal to their file.
func (e *ParseError) Tier() coreerrors.ErrorTier {
	return coreerrors.TierFatal
}
