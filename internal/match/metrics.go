// Package match provides metrics for ranking operations.
package match

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankingsTotal       = "rankings_total"
	MetricRankingDuration     = "ranking_duration_seconds"
	MetricRankingPoolSize     = "ranking_pool_size"
	MetricRankingResultsCount = "ranking_results_count"
)

// Candidate kind constants for labeling.
const (
	KindPeople = "people"
	KindEvents = "events"
)

// Status constants for ranking completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for ranking operations.
// All operations are thread-safe.
type Metrics struct {
	rankingsTotal   *prometheus.CounterVec
	rankingDuration *prometheus.HistogramVec
	poolSize        *prometheus.HistogramVec
	resultsCount    *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankingsTotal,
				Help: "Total number of ranking calls by candidate kind and status",
			},
			[]string{"kind", "status"},
		),
		rankingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankingDuration,
				Help:    "Histogram of ranking call duration in seconds by candidate kind",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
			},
			[]string{"kind"},
		),
		poolSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankingPoolSize,
				Help:    "Histogram of candidate pool size per ranking call by kind",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"kind"},
		),
		resultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankingResultsCount,
				Help:    "Histogram of returned result count per ranking call by kind",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRankingsTotal increments the ranking calls counter.
func (m *Metrics) IncRankingsTotal(kind, status string) {
	m.rankingsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRanking records pool size, result count and duration for one call.
func (m *Metrics) ObserveRanking(kind string, poolSize, results int, seconds float64) {
	m.rankingDuration.WithLabelValues(kind).Observe(seconds)
	m.poolSize.WithLabelValues(kind).Observe(float64(poolSize))
	m.resultsCount.WithLabelValues(kind).Observe(float64(results))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankingsTotal,
		m.rankingDuration,
		m.poolSize,
		m.resultsCount,
	}
}
