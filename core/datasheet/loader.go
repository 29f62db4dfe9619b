package datasheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/adalundhe/halflife/core/nuclide"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultPattern matches datasheet files.
	DefaultPattern = "*.txt"

	// DefaultConcurrency is the default number of files parsed in parallel.
	DefaultConcurrency = 4
)

// =============================================================================
// LoaderConfig
// =============================================================================

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Patterns are glob patterns matched against file base names.
	Patterns []string

	// Concurrency bounds parallel parsing. Default is 4.
	Concurrency int

	// Tolerance is the relative tolerance for redundant-field cross-checks.
	Tolerance float64

	// Logger receives per-file diagnostics. Default is slog.Default().
	Logger *slog.Logger
}

// DefaultLoaderConfig returns a configuration with sensible defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Patterns:    []string{DefaultPattern},
		Concurrency: DefaultConcurrency,
		Tolerance:   defaultConsistencyTolerance,
	}
}

// =============================================================================
// LoadResult
// =============================================================================

// LoadResult is a partially or fully successful catalog load.
type LoadResult struct {
	// Catalog holds every nuclide that parsed.
	Catalog *nuclide.Catalog

	// Failures holds one ParseError per rejected file, in path order.
	Failures []*ParseError

	// Warnings holds non-fatal findings on accepted files.
	Warnings []Warning

	// Files is the number of files that matched the patterns.
	Files int
}

// Err joins all failures, or returns nil when every file loaded.
func (r *LoadResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// =============================================================================
// Loader
// =============================================================================

// Loader parses datasheet directories into catalogs. A bad file never aborts
// the load; it is reported in LoadResult.Failures.
type Loader struct {
	config   LoaderConfig
	patterns []glob.Glob
	logger   *slog.Logger
}

// NewLoader creates a Loader. Returns an error if patterns cannot be compiled.
func NewLoader(config LoaderConfig) (*Loader, error) {
	if len(config.Patterns) == 0 {
		return nil, ErrNoPatterns
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}

	patterns, err := compilePatterns(config.Patterns)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{config: config, patterns: patterns, logger: logger}, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Matches reports whether the base name of path matches a configured pattern.
func (l *Loader) Matches(path string) bool {
	base := filepath.Base(path)
	for _, g := range l.patterns {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// LoadDir loads every matching file directly inside dir. The returned error
// is non-nil only when dir itself is unusable or ctx is cancelled; per-file
// failures are in the result.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type()&fs.ModeType != 0 {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if l.Matches(path) {
			paths = append(paths, path)
		}
	}

	return l.LoadFiles(ctx, paths)
}

type fileResult struct {
	path    string
	nuclide *nuclide.Nuclide
	err     *ParseError
}

// LoadFiles parses paths concurrently and assembles a catalog. The first
// file (in path order) defining a nuclide wins; later duplicates fail.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (*LoadResult, error) {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	results := make([]fileResult, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Concurrency)
	for i, path := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.parseOne(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return l.assemble(results), nil
}

func (l *Loader) parseOne(path string) fileResult {
	n, err := ParseFile(path)
	if err != nil {
		var perr *ParseError
		if !errors.As(err, &perr) {
			perr = &ParseError{File: path, Msg: "parse failed", Err: err}
		}
		return fileResult{path: path, err: perr}
	}
	return fileResult{path: path, nuclide: n}
}

func (l *Loader) assemble(results []fileResult) *LoadResult {
	res := &LoadResult{Files: len(results)}
	defined := make(map[nuclide.ID]string)
	accepted := make([]*nuclide.Nuclide, 0, len(results))

	for _, r := range results {
		if r.err != nil {
			l.logger.Warn("datasheet rejected",
				slog.String("file", r.path),
				slog.String("error", r.err.Error()))
			res.Failures = append(res.Failures, r.err)
			continue
		}

		id := r.nuclide.ID()
		if first, dup := defined[id]; dup {
			perr := &ParseError{
				File:  r.path,
				Field: keyNuclide.String(),
				Msg:   fmt.Sprintf("duplicate nuclide %s (first defined in %s)", id, first),
				Err:   nuclide.ErrDuplicateNuclide,
			}
			l.logger.Warn("datasheet rejected", slog.String("file", r.path), slog.String("error", perr.Error()))
			res.Failures = append(res.Failures, perr)
			continue
		}
		defined[id] = r.path
		accepted = append(accepted, r.nuclide)

		for _, msg := range CheckConsistency(r.nuclide, l.config.Tolerance) {
			l.logger.Warn("datasheet inconsistency",
				slog.String("file", r.path),
				slog.String("nuclide", id.String()),
				slog.String("detail", msg))
			res.Warnings = append(res.Warnings, Warning{File: r.path, Nuclide: id, Msg: msg})
		}
	}

	// Duplicates were filtered above, so NewCatalog cannot fail here.
	cat, _ := nuclide.NewCatalog(accepted...)
	res.Catalog = cat

	l.logger.Debug("datasheets loaded",
		slog.Int("files", res.Files),
		slog.Int("nuclides", cat.Len()),
		slog.Int("failures", len(res.Failures)))

	return res
}
