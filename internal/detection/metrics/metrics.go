package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

var (
	// UpstreamCalls tracks calls per upstream API and operation
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamradar_upstream_calls_total",
			Help: "Total number of upstream API calls",
		},
		[]string{"api", "operation"},
	)

	// UpstreamErrors tracks failed upstream calls by HTTP status (0 for transport errors)
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamradar_upstream_errors_total",
			Help: "Total number of failed upstream API calls",
		},
		[]string{"api", "operation", "status"},
	)

	// UpstreamLatency tracks upstream call latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scamradar_upstream_latency_seconds",
			Help:    "Upstream API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api", "operation"},
	)

	// CollectionLookups tracks enrichment outcomes per collection
	CollectionLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamradar_collection_lookups_total",
			Help: "Collection statistics lookups by outcome",
		},
		[]string{"outcome"},
	)

	// USDFallbacks counts prices converted from USD at the fixed rate
	USDFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scamradar_usd_fallback_total",
			Help: "Collection prices estimated from USD values",
		},
	)

	// Detections tracks completed detections by task and mode
	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamradar_detections_total",
			Help: "Total number of detections",
		},
		[]string{"task", "mode"},
	)

	// DetectionDuration tracks end-to-end detection latency
	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scamradar_detection_duration_seconds",
			Help:    "End-to-end detection latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"task"},
	)

	// ScamProbability tracks the distribution of predicted probabilities
	ScamProbability = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scamradar_scam_probability",
			Help:    "Predicted scam probability",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
		},
		[]string{"task"},
	)

	// Explanations tracks attribution runs by method and outcome
	Explanations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scamradar_explanations_total",
			Help: "Attribution runs by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// StageDuration tracks pipeline stage latency (fetch, enrich, predict, explain)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scamradar_stage_duration_seconds",
			Help:    "Detection pipeline stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// NegativeCacheSize tracks contracts known to have no collection statistics
	NegativeCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scamradar_negative_cache_size",
			Help: "Number of contracts in the negative collection cache",
		},
	)

	// BackgroundSize tracks the Shapley reference sample per task
	BackgroundSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scamradar_explain_background_size",
			Help: "Number of scaled vectors in the attribution background sample",
		},
		[]string{"task"},
	)

	// DBConnectionPoolUsage tracks the percentage of DB connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scamradar_db_connection_pool_usage",
			Help: "Percentage of database connections in use",
		},
	)
)

// Upstream records HTTP provider calls.
type Upstream struct{}

var _ provider.Metrics = Upstream{}

// Observe implements provider.Metrics.
func (Upstream) Observe(api, operation string, err error, started time.Time) {
	UpstreamCalls.WithLabelValues(api, operation).Inc()
	UpstreamLatency.WithLabelValues(api, operation).Observe(time.Since(started).Seconds())
	if err != nil {
		UpstreamErrors.WithLabelValues(api, operation, strconv.Itoa(provider.StatusCode(err))).Inc()
	}
}

// Enrichment records collection enrichment outcomes.
type Enrichment struct{}

// CollectionLookup counts one lookup outcome.
func (Enrichment) CollectionLookup(outcome string) {
	CollectionLookups.WithLabelValues(outcome).Inc()
}

// USDFallback counts one USD-converted price.
func (Enrichment) USDFallback() {
	USDFallbacks.Inc()
}
