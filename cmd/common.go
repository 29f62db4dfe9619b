package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/datasheet"
	"github.com/adalundhe/halflife/core/nuclide"
	"github.com/adalundhe/halflife/core/query"
)

const secondsPerYear = 365.25 * 86400

var (
	// ErrNoDatasheetDir indicates neither --dir nor the config names a
	// datasheet directory.
	ErrNoDatasheetDir = errors.New("no datasheet directory configured")

	// ErrEmptyCatalog indicates no datasheet in the directory loaded.
	ErrEmptyCatalog = errors.New("no nuclide loaded")

	// ErrInvalidTime indicates a time argument that could not be parsed.
	ErrInvalidTime = errors.New("invalid time")

	// ErrInvalidInventory indicates a malformed --root argument.
	ErrInvalidInventory = errors.New("invalid inventory")
)

// =============================================================================
// Catalog and engine
// =============================================================================

func (a *app) datasheetDir() (string, error) {
	dir := a.config.DatasheetDir(a.dirs)
	if dir == "" {
		return "", ErrNoDatasheetDir
	}
	return dir, nil
}

func (a *app) newLoader() (*datasheet.Loader, error) {
	return datasheet.NewLoader(a.config.LoaderConfig(a.logger))
}

// loadCatalog loads the datasheet directory. Rejected files are logged and
// skipped; an empty catalog is an error.
func (a *app) loadCatalog(ctx context.Context) (*datasheet.LoadResult, error) {
	dir, err := a.datasheetDir()
	if err != nil {
		return nil, err
	}
	loader, err := a.newLoader()
	if err != nil {
		return nil, err
	}
	res, err := loader.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Failures {
		a.logger.Warn("datasheet rejected", slog.String("error", f.Error()))
	}
	if res.Catalog.Len() == 0 {
		return res, fmt.Errorf("%w from %s", ErrEmptyCatalog, dir)
	}
	return res, nil
}

func (a *app) openEngine(ctx context.Context) (*query.Engine, error) {
	res, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewEngine(res.Catalog, a.config.Query, query.WithLogger(a.logger))
}

// buildChain builds the chain for roots. Missing daughters are logged and
// the chain is used as built; any other failure is returned.
func (a *app) buildChain(eng *query.Engine, roots []nuclide.ID) (*chain.Chain, error) {
	ch, err := eng.Chain(roots...)
	if ch == nil {
		return nil, err
	}
	for _, m := range chain.MissingDaughters(err) {
		a.logger.Warn("daughter not in catalog",
			slog.String("parent", m.Parent.String()),
			slog.String("daughter", m.Daughter.String()))
	}
	return ch, nil
}

// prepare opens the engine, parses the --root inventory and builds its
// chain. The caller closes the engine.
func (a *app) prepare(ctx context.Context, roots []string) (*query.Engine, *chain.Chain, bateman.Inventory, error) {
	eng, err := a.openEngine(ctx)
	if err != nil {
		return nil, nil, bateman.Inventory{}, err
	}
	inv, err := parseInventory(eng.Catalog(), roots)
	if err != nil {
		_ = eng.Close()
		return nil, nil, bateman.Inventory{}, err
	}
	ch, err := a.buildChain(eng, inv.IDs())
	if err != nil {
		_ = eng.Close()
		return nil, nil, bateman.Inventory{}, err
	}
	return eng, ch, inv, nil
}

func (a *app) logWarnings(warnings []error) {
	for _, w := range warnings {
		a.logger.Warn("result warning", slog.String("warning", w.Error()))
	}
}

// =============================================================================
// Parsing
// =============================================================================

// parseTime parses a time in seconds. It accepts bare seconds, Go
// durations, the suffixes d, a and y, and inf or forever.
func parseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	case "inf", "+inf", "forever":
		return math.Inf(1), nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	units := map[byte]float64{'d': 86400, 'a': secondsPerYear, 'y': secondsPerYear}
	if unit, ok := units[s[len(s)-1]]; ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64); err == nil {
			return v * unit, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return d.Seconds(), nil
}

func parseTimes(args []string) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, arg := range args {
		t, err := parseTime(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseInventory parses NUCLIDE=AMOUNT arguments. AMOUNT is a number of
// atoms, or an activity when suffixed with Bq; activities are converted
// to atoms with the nuclide's decay constant.
func parseInventory(cat *nuclide.Catalog, specs []string) (bateman.Inventory, error) {
	if len(specs) == 0 {
		return bateman.Inventory{}, fmt.Errorf("%w: at least one --root is required", ErrInvalidInventory)
	}

	atoms := make(map[nuclide.ID]float64, len(specs))
	for _, spec := range specs {
		name, amount, ok := strings.Cut(spec, "=")
		if !ok {
			return bateman.Inventory{}, fmt.Errorf("%w: %q is not NUCLIDE=AMOUNT", ErrInvalidInventory, spec)
		}
		id, err := nuclide.ParseID(strings.TrimSpace(name))
		if err != nil {
			return bateman.Inventory{}, fmt.Errorf("%w: %w", ErrInvalidInventory, err)
		}
		n, err := parseAmount(cat, id, strings.TrimSpace(amount))
		if err != nil {
			return bateman.Inventory{}, fmt.Errorf("%w: %s: %w", ErrInvalidInventory, id, err)
		}
		atoms[id] += n
	}
	return bateman.NewInventory(atoms)
}

func parseAmount(cat *nuclide.Catalog, id nuclide.ID, s string) (float64, error) {
	lower := strings.ToLower(s)
	if !strings.HasSuffix(lower, "bq") {
		return strconv.ParseFloat(s, 64)
	}

	activity, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-2]), 64)
	if err != nil {
		return 0, err
	}
	n, ok := cat.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", query.ErrUnknownNuclide, id)
	}
	lambda, ok := n.DecayConstant()
	if !ok || lambda == 0 {
		return 0, fmt.Errorf("activity needs a known nonzero decay constant")
	}
	return activity / lambda, nil
}

func parseRadiationTypes(names []string) ([]nuclide.RadiationType, error) {
	out := make([]nuclide.RadiationType, 0, len(names))
	for _, name := range names {
		r, ok := nuclide.RadiationTypeFromName(name)
		if !ok {
			return nil, fmt.Errorf("unknown radiation type %q", name)
		}
		out = append(out, r)
	}
	return out, nil
}
