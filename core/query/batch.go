package query

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/adalundhe/halflife/core/bateman"
	"github.com/adalundhe/halflife/core/chain"
	"github.com/adalundhe/halflife/core/pool"
)

// ActivityBatch evaluates activities at every time point on the worker
// pool. Results are keyed by time value: duplicates collapse into one
// entry and the slice is sorted by time regardless of completion order.
// The chain is solved once. The first evaluation error cancels the batch.
func (e *Engine) ActivityBatch(ctx context.Context, ch *chain.Chain, inv bateman.Inventory, times []float64) ([]*ActivityResult, error) {
	if len(times) == 0 {
		return nil, ErrNoTimes
	}
	if err := e.validate(ctx, ch, times...); err != nil {
		return nil, err
	}

	tl, err := e.Solve(ctx, ch, inv, nil)
	if err != nil {
		return nil, err
	}

	points := slices.Clone(times)
	slices.Sort(points)
	points = slices.Compact(points)

	batchID := uuid.New()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		mu      sync.Mutex
		results = make(map[float64]*ActivityResult, len(points))
		wg      sync.WaitGroup
	)

	fail := func(err error) {
		cancel(err)
		wg.Done()
	}

	for _, t := range points {
		wg.Add(1)
		job := &pool.Job{
			Priority: pool.PriorityNormal,
			Execute: func(context.Context) error {
				if err := ctx.Err(); err != nil {
					return context.Cause(ctx)
				}
				res, err := activityResult(tl, t)
				if err != nil {
					return err
				}
				mu.Lock()
				results[t] = res
				mu.Unlock()
				wg.Done()
				return nil
			},
			OnError: fail,
		}
		if err := e.pool.SubmitBlocking(ctx, job); err != nil {
			wg.Done()
			cancel(err)
			break
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		e.logger.Debug("batch aborted",
			slog.String("batch", batchID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	out := make([]*ActivityResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *ActivityResult) int { return cmp.Compare(a.Time, b.Time) })

	e.metrics.RecordBatchPoints(len(out))
	e.logger.Debug("batch evaluated",
		slog.String("batch", batchID.String()),
		slog.Int("points", len(out)))

	return out, nil
}
