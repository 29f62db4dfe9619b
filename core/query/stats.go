package query

import (
	"sync/atomic"
	"time"
)

// CacheStats tracks timeline cache behaviour.
type CacheStats struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	rejected  atomic.Int64
	shared    atomic.Int64
	startTime time.Time
}

func newCacheStats() *CacheStats {
	return &CacheStats{startTime: time.Now()}
}

func (s *CacheStats) recordHit()      { s.hits.Add(1) }
func (s *CacheStats) recordMiss()     { s.misses.Add(1) }
func (s *CacheStats) recordSet()      { s.sets.Add(1) }
func (s *CacheStats) recordRejected() { s.rejected.Add(1) }
func (s *CacheStats) recordShared()   { s.shared.Add(1) }

// Hits returns the number of lookups served from the cache.
func (s *CacheStats) Hits() int64 { return s.hits.Load() }

// Misses returns the number of lookups that found nothing.
func (s *CacheStats) Misses() int64 { return s.misses.Load() }

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s *CacheStats) HitRate() float64 {
	total := s.Hits() + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

// Snapshot returns a serializable copy of the counters.
func (s *CacheStats) Snapshot() StatsSnapshot {
	uptime := time.Since(s.startTime)
	return StatsSnapshot{
		Hits:      s.Hits(),
		Misses:    s.Misses(),
		Sets:      s.sets.Load(),
		Rejected:  s.rejected.Load(),
		Shared:    s.shared.Load(),
		HitRate:   s.HitRate(),
		Uptime:    uptime,
		UptimeStr: uptime.String(),
	}
}

// StatsSnapshot is a point-in-time copy of CacheStats.
type StatsSnapshot struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Rejected  int64         `json:"rejected"`
	Shared    int64         `json:"shared"`
	HitRate   float64       `json:"hit_rate"`
	Uptime    time.Duration `json:"uptime"`
	UptimeStr string        `json:"uptime_str"`
}
