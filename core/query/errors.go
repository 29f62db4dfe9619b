package query

import "errors"

var (
	// ErrStable indicates a half-life query for a nuclide that does not decay.
	ErrStable = errors.New("nuclide is stable")

	// ErrUnknownNuclide indicates an identifier absent from the catalog.
	ErrUnknownNuclide = errors.New("unknown nuclide")

	// ErrUnknownHalfLife indicates a radioactive nuclide without a reported
	// half-life.
	ErrUnknownHalfLife = errors.New("half-life not reported")

	// ErrEngineClosed indicates use of an engine after Close.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrNilCatalog indicates NewEngine was called without a catalog.
	ErrNilCatalog = errors.New("nil catalog")

	// ErrNoTimes indicates a batch request without time points.
	ErrNoTimes = errors.New("no time points")
)
