package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/temcen/gamerec/internal/recommender"
)

const (
	endpointSimilarItems    = "similar_items"
	endpointRecommendations = "user_recommendations"

	outcomeSuccess  = "success"
	outcomeNotFound = "not_found"
	outcomeNotBuilt = "not_built"
	outcomeError    = "error"
)

// Metrics holds the Prometheus collectors of the recommendation service.
type Metrics struct {
	buildDuration    prometheus.Histogram
	buildsTotal      *prometheus.CounterVec
	queriesTotal     *prometheus.CounterVec
	queryLatency     *prometheus.HistogramVec
	insufficient     prometheus.Counter
	expansionRounds  prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	modelSize        *prometheus.GaugeVec
	modelVersion     prometheus.Gauge
	degenerateVector *prometheus.GaugeVec
}

// NewMetrics registers the collectors with reg. A nil registerer keeps them
// unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamerec_model_build_duration_seconds",
			Help:    "Duration of complete model rebuilds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),

		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerec_model_builds_total",
			Help: "Model rebuild attempts by outcome",
		}, []string{"outcome"}),

		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerec_queries_total",
			Help: "Recommendation queries by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamerec_query_latency_seconds",
			Help:    "Recommendation query latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, []string{"endpoint"}),

		insufficient: factory.NewCounter(prometheus.CounterOpts{
			Name: "gamerec_insufficient_candidates_total",
			Help: "User recommendations that returned fewer items than requested",
		}),

		expansionRounds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamerec_expansion_rounds",
			Help:    "Neighbor expansion rounds per user recommendation",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerec_cache_lookups_total",
			Help: "Result cache lookups by endpoint and result",
		}, []string{"endpoint", "result"}),

		modelSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gamerec_model_size",
			Help: "Size of the served model by dimension",
		}, []string{"dimension"}),

		modelVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gamerec_model_version",
			Help: "Version of the served model",
		}),

		degenerateVector: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gamerec_model_degenerate_vectors",
			Help: "Zero-norm vectors in the served model",
		}, []string{"index"}),
	}
}

// RecordBuild records one rebuild attempt. stats is nil on failure.
func (m *Metrics) RecordBuild(stats *recommender.BuildStats, duration time.Duration, err error) {
	m.buildDuration.Observe(duration.Seconds())
	if err != nil {
		m.buildsTotal.WithLabelValues(outcomeError).Inc()
		return
	}
	m.buildsTotal.WithLabelValues(outcomeSuccess).Inc()

	m.modelVersion.Set(float64(stats.Version))
	m.modelSize.WithLabelValues("items").Set(float64(stats.Items))
	m.modelSize.WithLabelValues("users").Set(float64(stats.Users))
	m.modelSize.WithLabelValues("interactions").Set(float64(stats.Interactions))
	m.degenerateVector.WithLabelValues("items").Set(float64(stats.DegenerateItems))
	m.degenerateVector.WithLabelValues("users").Set(float64(stats.DegenerateUsers))
}

func (m *Metrics) RecordQuery(endpoint, outcome string, latency time.Duration) {
	m.queriesTotal.WithLabelValues(endpoint, outcome).Inc()
	m.queryLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

func (m *Metrics) RecordExpansion(rounds int, insufficient bool) {
	m.expansionRounds.Observe(float64(rounds))
	if insufficient {
		m.insufficient.Inc()
	}
}

func (m *Metrics) RecordCacheLookup(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}
