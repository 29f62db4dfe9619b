package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPoolClosed  = errors.New("pool is closed")
	ErrPoolFull    = errors.New("pool queue is full")
	ErrJobPanicked = errors.New("job panicked")
	ErrNilJob      = errors.New("nil job")
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

const numLanes = int(PriorityHigh) + 1

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Job is a unit of work. Execute receives the pool's context, which is
// cancelled by Stop. OnError is called with the job's error, with
// ErrJobPanicked on panic, or with ErrPoolClosed when the pool stops
// before the job runs.
type Job struct {
	ID        uuid.UUID
	Priority  Priority
	Execute   func(ctx context.Context) error
	OnError   func(error)
	CreatedAt time.Time
}

type Config struct {
	Name      string
	Workers   int
	QueueSize int
	Logger    *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Name:      "halflife",
		Workers:   runtime.GOMAXPROCS(0),
		QueueSize: 1024,
	}
}

// Pool runs jobs on a fixed set of workers from a bounded queue. Higher
// priority lanes are drained first; jobs within a lane run in FIFO order.
type Pool struct {
	mu sync.Mutex

	name      string
	workers   int
	queueSize int
	logger    *slog.Logger

	lanes    [numLanes][]*Job
	queueLen int

	jobReady chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running atomic.Bool
	stopped atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func New(cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		name:      cfg.Name,
		workers:   cfg.Workers,
		queueSize: cfg.QueueSize,
		logger:    cfg.Logger.With(slog.String("pool", cfg.Name)),
		jobReady:  make(chan struct{}, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers. It is a no-op on a running or stopped pool.
func (p *Pool) Start() {
	if p.stopped.Load() || p.running.Swap(true) {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop cancels running jobs, waits for workers to exit and fails every
// queued job with ErrPoolClosed. A stopped pool cannot be restarted.
func (p *Pool) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	p.running.Store(false)

	p.cancel()
	p.wg.Wait()

	for _, job := range p.drain() {
		p.dropped.Add(1)
		if job.OnError != nil {
			job.OnError(ErrPoolClosed)
		}
	}
}

// Close stops the pool. It returns ErrPoolClosed on the second call.
func (p *Pool) Close() error {
	if p.stopped.Load() {
		return ErrPoolClosed
	}
	p.Stop()
	return nil
}

// Submit enqueues job without waiting. It fails with ErrPoolFull when the
// queue is at capacity and ErrPoolClosed once the pool has stopped.
func (p *Pool) Submit(job *Job) error {
	if err := p.accept(job); err != nil {
		return err
	}
	err := p.enqueue(job)
	if errors.Is(err, ErrPoolFull) {
		p.dropped.Add(1)
	}
	return err
}

// SubmitBlocking waits for queue capacity until ctx is done or the pool
// stops.
func (p *Pool) SubmitBlocking(ctx context.Context, job *Job) error {
	if err := p.accept(job); err != nil {
		return err
	}

	for {
		err := p.enqueue(job)
		if !errors.Is(err, ErrPoolFull) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return ErrPoolClosed
		case <-time.After(time.Millisecond):
		}
	}
}

func (p *Pool) accept(job *Job) error {
	if job == nil || job.Execute == nil {
		return ErrNilJob
	}
	if p.stopped.Load() {
		return ErrPoolClosed
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	return nil
}

func (p *Pool) enqueue(job *Job) error {
	p.mu.Lock()
	if p.stopped.Load() {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.queueLen >= p.queueSize {
		p.mu.Unlock()
		return ErrPoolFull
	}

	lane := normalizeLane(job.Priority)
	p.lanes[lane] = append(p.lanes[lane], job)
	p.queueLen++
	p.submitted.Add(1)
	p.mu.Unlock()

	select {
	case p.jobReady <- struct{}{}:
	default:
	}
	return nil
}

func normalizeLane(priority Priority) int {
	lane := int(priority)
	if lane < 0 {
		return 0
	}
	if lane >= numLanes {
		return numLanes - 1
	}
	return lane
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.jobReady:
		}

		job := p.pop()
		if job == nil {
			continue
		}
		p.handleResult(job, p.execute(job))
	}
}

func (p *Pool) pop() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	for lane := numLanes - 1; lane >= 0; lane-- {
		if len(p.lanes[lane]) == 0 {
			continue
		}
		job := p.lanes[lane][0]
		p.lanes[lane][0] = nil
		p.lanes[lane] = p.lanes[lane][1:]
		p.queueLen--
		return job
	}
	return nil
}

func (p *Pool) drain() []*Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*Job
	for lane := numLanes - 1; lane >= 0; lane-- {
		out = append(out, p.lanes[lane]...)
		p.lanes[lane] = nil
	}
	p.queueLen = 0
	return out
}

func (p *Pool) execute(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	return job.Execute(p.ctx)
}

func (p *Pool) handleResult(job *Job, err error) {
	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("job failed",
			slog.String("job", job.ID.String()),
			slog.String("error", err.Error()))
		if job.OnError != nil {
			job.OnError(err)
		}
		return
	}
	p.completed.Add(1)
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queueLen := p.queueLen
	p.mu.Unlock()

	return Stats{
		Name:        p.name,
		Workers:     p.workers,
		QueueSize:   p.queueSize,
		QueueLength: queueLen,
		Running:     p.running.Load(),
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
		Failed:      p.failed.Load(),
		Dropped:     p.dropped.Load(),
	}
}

type Stats struct {
	Name        string `json:"name"`
	Workers     int    `json:"workers"`
	QueueSize   int    `json:"queue_size"`
	QueueLength int    `json:"queue_length"`
	Running     bool   `json:"running"`
	Submitted   int64  `json:"submitted"`
	Completed   int64  `json:"completed"`
	Failed      int64  `json:"failed"`
	Dropped     int64  `json:"dropped"`
}
