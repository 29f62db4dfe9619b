package datasheet

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// Constants
// =============================================================================

// DefaultDebounce is the default quiet period before a reload (200ms).
const DefaultDebounce = 200 * time.Millisecond

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrWatcherClosed indicates Run was called on a closed watcher.
	ErrWatcherClosed = errors.New("datasheet watcher closed")

	// ErrNoLoader indicates the watch config has no loader.
	ErrNoLoader = errors.New("datasheet watcher requires a loader")
)

// =============================================================================
// WatchConfig
// =============================================================================

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Dir is the datasheet directory to watch.
	Dir string

	// Loader parses the directory on every reload.
	Loader *Loader

	// Debounce is the quiet period after the last event before reloading.
	Debounce time.Duration

	// OnReload is called with every new snapshot, including the initial one.
	OnReload func(*LoadResult)

	// Logger receives reload diagnostics. Default is slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// Watcher
// =============================================================================

// Watcher reloads a datasheet directory when it changes. Each reload builds a
// fresh immutable catalog and publishes it atomically; a snapshot already
// handed out is never modified.
type Watcher struct {
	config  WatchConfig
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	current atomic.Pointer[LoadResult]
	reloads atomic.Int64

	mu       sync.Mutex
	timer    *time.Timer
	trigger  chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
}

// NewWatcher creates a watcher for config.Dir.
func NewWatcher(config WatchConfig) (*Watcher, error) {
	if config.Loader == nil {
		return nil, ErrNoLoader
	}
	if err := validateWatchDir(config.Dir); err != nil {
		return nil, err
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		config:  config,
		fs:      fsw,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}, nil
}

func validateWatchDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// Current returns the latest snapshot, or nil before the first load.
func (w *Watcher) Current() *LoadResult {
	return w.current.Load()
}

// Reloads returns the number of completed loads, including the initial one.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run loads the directory once, then reloads after each debounced change
// until ctx is cancelled. It returns ctx.Err() on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if w.closed.Load() {
		return ErrWatcherClosed
	}
	defer w.Close()

	if err := w.reload(ctx); err != nil {
		return err
	}
	if err := w.fs.Add(w.config.Dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("datasheet watch error", slog.String("error", err.Error()))
		case <-w.trigger:
			if err := w.reload(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("datasheet reload failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.config.Loader.Matches(event.Name) {
		return
	}
	if event.Op == fsnotify.Chmod {
		return
	}
	w.schedule()
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.Debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) reload(ctx context.Context) error {
	res, err := w.config.Loader.LoadDir(ctx, w.config.Dir)
	if err != nil {
		return err
	}

	w.current.Store(res)
	w.reloads.Add(1)
	w.logger.Info("datasheet catalog loaded",
		slog.String("dir", w.config.Dir),
		slog.Int("nuclides", res.Catalog.Len()),
		slog.Int("failures", len(res.Failures)))

	if w.config.OnReload != nil {
		w.config.OnReload(res)
	}
	return nil
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		w.closed.Store(true)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fs.Close()
	})
	return err
}
