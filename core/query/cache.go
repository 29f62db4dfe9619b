package query

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/adalundhe/halflife/core/bateman"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 20
	defaultBufferItems = 64
)

// CacheConfig sizes the timeline cache. Cost is counted in chain nodes
// plus time points per timeline.
type CacheConfig struct {
	NumCounters int64 `yaml:"num_counters" validate:"gte=0"`
	MaxCost     int64 `yaml:"max_cost" validate:"gte=0"`
	BufferItems int64 `yaml:"buffer_items" validate:"gte=0"`
}

// DefaultCacheConfig returns the default cache sizing.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
	}
}

func (c CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if c.NumCounters <= 0 {
		c.NumCounters = def.NumCounters
	}
	if c.MaxCost <= 0 {
		c.MaxCost = def.MaxCost
	}
	if c.BufferItems <= 0 {
		c.BufferItems = def.BufferItems
	}
	return c
}

// timelineCache is a read-through cache of solved timelines. Concurrent
// misses on one key share a single computation.
type timelineCache struct {
	cache  *ristretto.Cache
	group  singleflight.Group
	stats  *CacheStats
	mu     sync.RWMutex
	closed bool
}

func newTimelineCache(config CacheConfig) (*timelineCache, error) {
	cfg := config.withDefaults()

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cfg.BufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &timelineCache{
		cache: cache,
		stats: newCacheStats(),
	}, nil
}

func (c *timelineCache) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *timelineCache) get(key string) (*bateman.Timeline, bool) {
	if c.isClosed() {
		return nil, false
	}

	value, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	tl, ok := value.(*bateman.Timeline)
	return tl, ok
}

func (c *timelineCache) set(key string, tl *bateman.Timeline) {
	if c.isClosed() {
		return
	}

	if !c.cache.Set(key, tl, timelineCost(tl)) {
		c.stats.recordRejected()
		return
	}
	c.cache.Wait()
	c.stats.recordSet()
}

// getOrCompute returns the cached timeline for key, or runs compute once
// for all concurrent callers and stores its result. hit reports whether
// the caller was served without computing.
func (c *timelineCache) getOrCompute(key string, compute func() (*bateman.Timeline, error)) (tl *bateman.Timeline, hit bool, err error) {
	if tl, ok := c.get(key); ok {
		c.stats.recordHit()
		return tl, true, nil
	}
	c.stats.recordMiss()

	computed := false
	value, err, shared := c.group.Do(key, func() (any, error) {
		if tl, ok := c.get(key); ok {
			return tl, nil
		}
		computed = true
		tl, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(key, tl)
		return tl, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared && !computed {
		c.stats.recordShared()
	}
	return value.(*bateman.Timeline), !computed, nil
}

func (c *timelineCache) clear() {
	if c.isClosed() {
		return
	}
	c.cache.Clear()
}

func (c *timelineCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cache.Close()
}

func timelineCost(tl *bateman.Timeline) int64 {
	return int64(1 + tl.Chain().Len() + len(tl.Times()))
}
