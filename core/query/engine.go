// Package query is the entry point for decay computations against a
// catalog: chain construction, cached solves, activities, spectra and
// half-life lookups.
//
// An Engine holds no per-query state. Its only shared mutable structures
// are the chain LRU and the timeline cache, both safe for concurrent use.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/emission"
	"github.com/adalundhe/halflife/core/nuclide"
	"github.com/adalundhe/halflife/core/pool"
)

type chainEntry struct {
	chain *chain.Chain
	err   error
}

// Engine answers decay queries against one immutable catalog.
type Engine struct {
	catalog    *nuclide.Catalog
	config     Config
	solver     *bateman.Solver
	aggregator *emission.Aggregator
	chains     *lru.Cache[string, chainEntry]
	timelines  *timelineCache
	pool       *pool.Pool
	metrics    *Metrics
	logger     *slog.Logger

	solves atomic.Int64
	closed atomic.Bool
}

// NewEngine creates an engine over cat and starts its worker pool.
func NewEngine(cat *nuclide.Catalog, cfg Config, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, ErrNilCatalog
	}

	o := engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.withDefaults()

	chains, err := lru.New[string, chainEntry](cfg.ChainCacheSize)
	if err != nil {
		return nil, fmt.Errorf("chain cache: %w", err)
	}
	timelines, err := newTimelineCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("timeline cache: %w", err)
	}
	metrics, err := NewMetrics(o.registerer)
	if err != nil {
		timelines.close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	logger := o.logger.With(slog.String("component", "query"))

	e := &Engine{
		catalog: cat,
		config:  cfg,
		solver: bateman.NewSolver(
			bateman.WithEpsilon(cfg.Epsilon),
			bateman.WithPrecisionSpan(cfg.PrecisionSpan),
			bateman.WithLogger(logger),
		),
		aggregator: emission.NewAggregator(logger),
		chains:     chains,
		timelines:  timelines,
		pool: pool.New(pool.Config{
			Name:      "query",
			Workers:   cfg.Workers,
			QueueSize: cfg.QueueSize,
			Logger:    logger,
		}),
		metrics: metrics,
		logger:  logger,
	}
	e.pool.Start()

	return e, nil
}

// Close stops the worker pool and releases the cache. It is idempotent.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.pool.Stop()
	e.timelines.close()
	return nil
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *nuclide.Catalog { return e.catalog }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// Metrics returns the engine's Prometheus collector.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// CacheStats returns a snapshot of the timeline cache counters.
func (e *Engine) CacheStats() StatsSnapshot { return e.timelines.stats.Snapshot() }

// Solves returns the number of solver runs, excluding cache hits.
func (e *Engine) Solves() int64 { return e.solves.Load() }

// PoolStats returns the worker pool counters.
func (e *Engine) PoolStats() pool.Stats { return e.pool.Stats() }

// =============================================================================
// Chains
// =============================================================================

// Chain builds the decay chain for roots, reusing a previously built chain
// for the same root set. As with chain.Build, a chain with missing
// daughters is returned together with the joined MissingDaughterErrors.
func (e *Engine) Chain(roots ...nuclide.ID) (*chain.Chain, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	canonical := slices.Clone(roots)
	slices.SortFunc(canonical, nuclide.Compare)
	canonical = slices.Compact(canonical)
	key := rootsKey(canonical)

	if entry, ok := e.chains.Get(key); ok {
		return entry.chain, entry.err
	}

	ch, err := chain.Build(e.catalog, canonical,
		chain.WithParentTolerance(e.config.ParentTolerance),
		chain.WithLogger(e.logger))
	if ch == nil {
		return nil, err
	}
	e.chains.Add(key, chainEntry{chain: ch, err: err})
	return ch, err
}

// =============================================================================
// Solving
// =============================================================================

// Solve returns the population timeline of ch from inv sampled on times,
// served from the cache when the same chain, inventory and grid were
// solved before. Concurrent identical requests compute once.
func (e *Engine) Solve(ctx context.Context, ch *chain.Chain, inv bateman.Inventory, times []float64) (*bateman.Timeline, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, bateman.ErrNilChain
	}

	key := NewTimelineKey(ch, inv, times, e.solver.Epsilon()).String()
	tl, hit, err := e.timelines.getOrCompute(key, func() (*bateman.Timeline, error) {
		start := time.Now()
		tl, err := e.solver.Solve(ch, inv, times)
		e.solves.Add(1)
		e.metrics.RecordSolve(err, time.Since(start).Seconds())
		if err == nil {
			e.metrics.RecordStrategies(tl.Strategies())
		}
		return tl, err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordCacheLookup(hit)
	return tl, nil
}

// validate rejects a query before any solving happens.
func (e *Engine) validate(ctx context.Context, ch *chain.Chain, times ...float64) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ch == nil {
		return bateman.ErrNilChain
	}
	for _, t := range times {
		if err := bateman.CheckTime(t); err != nil {
			return err
		}
	}
	return bateman.CheckResolved(ch)
}

// =============================================================================
// Activity
// =============================================================================

// ActivityResult holds per-nuclide activities at one time.
type ActivityResult struct {
	// Time in seconds after t=0.
	Time float64

	// Activities maps every chain node to its activity in Bq.
	Activities map[nuclide.ID]float64

	// Warnings holds chain consistency and solver precision warnings.
	Warnings []error
}

// Total returns the summed activity.
func (r *ActivityResult) Total() float64 {
	sum := 0.0
	for _, a := range r.Activities {
		sum += a
	}
	return sum
}

// IDs returns the nuclides of the result in canonical order.
func (r *ActivityResult) IDs() []nuclide.ID {
	ids := make([]nuclide.ID, 0, len(r.Activities))
	for id := range r.Activities {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, nuclide.Compare)
	return ids
}

// ActivityAt returns the activity of every node of ch at time t seconds.
func (e *Engine) ActivityAt(ctx context.Context, ch *chain.Chain, inv bateman.Inventory, t float64) (*ActivityResult, error) {
	if err := e.validate(ctx, ch, t); err != nil {
		return nil, err
	}

	tl, err := e.Solve(ctx, ch, inv, nil)
	if err != nil {
		return nil, err
	}
	return activityResult(tl, t)
}

func activityResult(tl *bateman.Timeline, t float64) (*ActivityResult, error) {
	acts, err := tl.Activities(t)
	if err != nil {
		return nil, err
	}
	return &ActivityResult{
		Time:       t,
		Activities: acts,
		Warnings:   timelineWarnings(tl),
	}, nil
}

func timelineWarnings(tl *bateman.Timeline) []error {
	var out []error
	for _, w := range tl.Chain().Warnings() {
		out = append(out, w)
	}
	for _, w := range tl.Warnings() {
		out = append(out, w)
	}
	return out
}

// =============================================================================
// Spectrum
// =============================================================================

// SpectrumOver returns the expected emission counts over [t0, t1]. t1 may
// be +Inf.
func (e *Engine) SpectrumOver(ctx context.Context, ch *chain.Chain, inv bateman.Inventory, t0, t1 float64) (*emission.Spectrum, error) {
	w := emission.Window{Start: t0, End: t1}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := e.validate(ctx, ch); err != nil {
		return nil, err
	}

	tl, err := e.Solve(ctx, ch, inv, nil)
	if err != nil {
		return nil, err
	}
	return e.aggregator.Aggregate(ctx, tl, w)
}

// =============================================================================
// Half-life
// =============================================================================

// HalfLifeSeconds returns id's half-life in seconds.
func (e *Engine) HalfLifeSeconds(id nuclide.ID) (float64, error) {
	n, ok := e.catalog.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownNuclide, id)
	}
	if n.IsStable() {
		return 0, fmt.Errorf("%w: %s", ErrStable, id)
	}
	hl := n.HalfLife()
	if !hl.Known {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHalfLife, id)
	}
	return hl.Value, nil
}

// HalfLifeOf returns id's half-life as a Duration. Half-lives beyond the
// Duration range saturate at math.MaxInt64; use HalfLifeSeconds for the
// exact value.
func (e *Engine) HalfLifeOf(id nuclide.ID) (time.Duration, error) {
	s, err := e.HalfLifeSeconds(id)
	if err != nil {
		return 0, err
	}
	return SecondsToDuration(s), nil
}

// SecondsToDuration converts seconds to a Duration, saturating at the
// int64 bounds.
func SecondsToDuration(s float64) time.Duration {
	ns := s * float64(time.Second)
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	case ns <= math.MinInt64:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ns)
}
