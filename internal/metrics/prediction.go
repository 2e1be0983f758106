package metrics

import "github.com/prometheus/client_golang/prometheus"

// PredictionMetrics holds Prometheus metrics for the submission pipeline.
type PredictionMetrics struct {
	// SubmissionsTotal counts write attempts by outcome:
	// created, revised, duplicate, not_found, rejected, error.
	SubmissionsTotal *prometheus.CounterVec
	// VerificationsTotal counts bot-challenge oracle consultations by outcome:
	// ok, blocked, unavailable (unavailable admissions fail open).
	VerificationsTotal *prometheus.CounterVec
}

// NewPredictionMetrics creates and registers submission metrics on the given registry.
func NewPredictionMetrics(reg prometheus.Registerer) *PredictionMetrics {
	m := &PredictionMetrics{
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of prediction write attempts, by outcome.",
		}, []string{"outcome"}),
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of bot-challenge verifications, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.SubmissionsTotal, m.VerificationsTotal)
	return m
}

// CacheMetrics holds Prometheus metrics for the aggregate cache.
type CacheMetrics struct {
	Hits              prometheus.Counter
	Misses            prometheus.Counter
	RecomputeDuration prometheus.Histogram
}

// NewCacheMetrics creates and registers aggregate cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_cache_hits_total",
			Help:      "Aggregate reads served from the cached slot.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_cache_misses_total",
			Help:      "Aggregate reads that triggered a ledger scan.",
		}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_recompute_duration_seconds",
			Help:      "Duration of full-scan aggregate recomputation in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.RecomputeDuration)
	return m
}
