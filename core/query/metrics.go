package query

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "halflife"

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	solvesTotal      *prometheus.CounterVec
	solveDuration    prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	batchPointsTotal prometheus.Counter
	pathTerms        *prometheus.CounterVec
}

// NewMetrics creates the engine metrics and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.solvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "solves_total",
			Help:      "Total number of Bateman solves",
		},
		[]string{"status"}, // status: success, error
	)

	m.solveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "solve_duration_seconds",
		Help:      "Time taken to solve a decay chain",
		Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
	})

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Timeline cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)

	m.batchPointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "batch_points_total",
		Help:      "Time points evaluated by batch queries",
	})

	m.pathTerms = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "path_terms_total",
			Help:      "Decay path terms expanded, by strategy",
		},
		[]string{"strategy"},
	)
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.solvesTotal.Describe(ch)
	m.solveDuration.Describe(ch)
	m.cacheLookups.Describe(ch)
	m.batchPointsTotal.Describe(ch)
	m.pathTerms.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.solvesTotal.Collect(ch)
	m.solveDuration.Collect(ch)
	m.cacheLookups.Collect(ch)
	m.batchPointsTotal.Collect(ch)
	m.pathTerms.Collect(ch)
}

// RecordSolve records one solve and its duration in seconds.
func (m *Metrics) RecordSolve(err error, seconds float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.solvesTotal.WithLabelValues(status).Inc()
	m.solveDuration.Observe(seconds)
}

// RecordStrategies adds per-strategy path term counts.
func (m *Metrics) RecordStrategies(counts map[string]int) {
	for name, n := range counts {
		m.pathTerms.WithLabelValues(name).Add(float64(n))
	}
}

// RecordCacheLookup records a timeline cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordBatchPoints adds n evaluated batch time points.
func (m *Metrics) RecordBatchPoints(n int) {
	m.batchPointsTotal.Add(float64(n))
}
