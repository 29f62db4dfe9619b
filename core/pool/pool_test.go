package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adalundhe/halflife/core/pool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noop(context.Context) error { return nil }

// block occupies a single worker until release is closed or the pool stops.
func block(t *testing.T, p *pool.Pool) (release func()) {
	t.Helper()
	started := make(chan struct{})
	done := make(chan struct{})
	require.NoError(t, p.Submit(&pool.Job{
		Priority: pool.PriorityHigh,
		Execute: func(ctx context.Context) error {
			close(started)
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	}))
	<-started
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func TestPool_New(t *testing.T) {
	p := pool.New(pool.Config{})
	defer p.Stop()

	stats := p.Stats()
	assert.Equal(t, "halflife", stats.Name)
	assert.Positive(t, stats.Workers)
	assert.Equal(t, 1024, stats.QueueSize)
	assert.False(t, stats.Running)
}

func TestPool_StartStop(t *testing.T) {
	p := pool.New(pool.Config{Name: "test", Workers: 2})

	p.Start()
	assert.True(t, p.Stats().Running)

	p.Stop()
	assert.False(t, p.Stats().Running)

	p.Start()
	assert.False(t, p.Stats().Running, "a stopped pool stays stopped")
}

func TestPool_Submit(t *testing.T) {
	p := pool.New(pool.Config{Workers: 3})
	p.Start()
	defer p.Stop()

	var completed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		job := &pool.Job{
			Execute: func(ctx context.Context) error {
				completed.Add(1)
				wg.Done()
				return nil
			},
		}
		require.NoError(t, p.Submit(job))
		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.False(t, job.CreatedAt.IsZero())
	}

	wg.Wait()
	assert.Equal(t, int32(20), completed.Load())
	assert.Eventually(t, func() bool { return p.Stats().Completed == 20 }, time.Second, 5*time.Millisecond)
}

func TestPool_PriorityOrdering(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1, QueueSize: 10})
	p.Start()
	defer p.Stop()

	release := block(t, p)

	var mu sync.Mutex
	var order []pool.Priority
	var wg sync.WaitGroup
	for _, prio := range []pool.Priority{pool.PriorityLow, pool.PriorityNormal, pool.PriorityHigh, pool.PriorityLow} {
		wg.Add(1)
		require.NoError(t, p.Submit(&pool.Job{
			Priority: prio,
			Execute: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, prio)
				mu.Unlock()
				wg.Done()
				return nil
			},
		}))
	}

	release()
	wg.Wait()

	assert.Equal(t, []pool.Priority{pool.PriorityHigh, pool.PriorityNormal, pool.PriorityLow, pool.PriorityLow}, order)
}

func TestPool_QueueFull(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1, QueueSize: 2})
	p.Start()
	defer p.Stop()

	release := block(t, p)
	defer release()

	require.NoError(t, p.Submit(&pool.Job{Execute: noop}))
	require.NoError(t, p.Submit(&pool.Job{Execute: noop}))

	err := p.Submit(&pool.Job{Execute: noop})
	assert.ErrorIs(t, err, pool.ErrPoolFull)
	assert.Equal(t, int64(1), p.Stats().Dropped)
	assert.Equal(t, 2, p.Stats().QueueLength)
}

func TestPool_Errors(t *testing.T) {
	p := pool.New(pool.Config{Workers: 2})
	p.Start()
	defer p.Stop()

	errs := make(chan error, 2)
	require.NoError(t, p.Submit(&pool.Job{
		Execute: func(ctx context.Context) error { return errors.New("solve failed") },
		OnError: func(err error) { errs <- err },
	}))
	require.NoError(t, p.Submit(&pool.Job{
		Execute: func(ctx context.Context) error { panic("boom") },
		OnError: func(err error) { errs <- err },
	}))

	got := []error{<-errs, <-errs}
	var panicked, failed bool
	for _, err := range got {
		if errors.Is(err, pool.ErrJobPanicked) {
			panicked = true
			assert.Contains(t, err.Error(), "boom")
		} else {
			failed = err.Error() == "solve failed"
		}
	}
	assert.True(t, panicked)
	assert.True(t, failed)
	assert.Eventually(t, func() bool { return p.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)
}

func TestPool_SubmitBlocking(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1, QueueSize: 1})
	p.Start()
	defer p.Stop()

	release := block(t, p)
	require.NoError(t, p.Submit(&pool.Job{Execute: noop}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.SubmitBlocking(ctx, &pool.Job{Execute: noop})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ran := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		release()
	}()
	require.NoError(t, p.SubmitBlocking(context.Background(), &pool.Job{
		Execute: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	}))
	<-ran
}

func TestPool_StopFailsQueuedJobs(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1, QueueSize: 4})
	p.Start()

	cancelled := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(&pool.Job{
		Execute: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		},
	}))
	<-started

	var dropped atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(&pool.Job{
			Execute: noop,
			OnError: func(err error) {
				if errors.Is(err, pool.ErrPoolClosed) {
					dropped.Add(1)
				}
			},
		}))
	}

	p.Stop()
	<-cancelled

	assert.Equal(t, int32(3), dropped.Load())
	assert.Equal(t, int64(3), p.Stats().Dropped)
	assert.Zero(t, p.Stats().QueueLength)

	assert.ErrorIs(t, p.Submit(&pool.Job{Execute: noop}), pool.ErrPoolClosed)
	assert.ErrorIs(t, p.SubmitBlocking(context.Background(), &pool.Job{Execute: noop}), pool.ErrPoolClosed)
	assert.ErrorIs(t, p.Close(), pool.ErrPoolClosed)
}

func TestPool_NilJob(t *testing.T) {
	p := pool.New(pool.Config{Workers: 1})
	defer p.Stop()

	assert.ErrorIs(t, p.Submit(nil), pool.ErrNilJob)
	assert.ErrorIs(t, p.Submit(&pool.Job{}), pool.ErrNilJob)
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "low", pool.PriorityLow.String())
	assert.Equal(t, "normal", pool.PriorityNormal.String())
	assert.Equal(t, "high", pool.PriorityHigh.String())
	assert.Equal(t, "unknown", pool.Priority(9).String())
}
