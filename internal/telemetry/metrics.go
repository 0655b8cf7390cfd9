package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chat center.
type Metrics struct {
	RequestTotal         *prometheus.CounterVec
	RequestDurationMs    *prometheus.HistogramVec
	BranchFailureTotal   *prometheus.CounterVec
	CacheOpsTotal        *prometheus.CounterVec
	FallbackTotal        *prometheus.CounterVec
	BackgroundStepTotal  *prometheus.CounterVec
	BackgroundDropped    prometheus.Counter
	BackgroundQueueDepth prometheus.Gauge
	RateLimitHitTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_request_total",
			Help: "Total number of chat requests processed.",
		}, []string{"status", "model", "rag_used"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_request_duration_ms",
			Help:    "Synchronous chat request duration in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
		}, []string{"model"}),

		BranchFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_retrieval_branch_failure_total",
			Help: "Retrieval branches that failed and degraded to a safe default.",
		}, []string{"branch"}),

		CacheOpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_response_cache_ops_total",
			Help: "Response cache lookups by branch and result.",
		}, []string{"branch", "result"}),

		FallbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_llm_fallback_total",
			Help: "Chat turns answered with the fixed fallback response.",
		}, []string{"reason"}),

		BackgroundStepTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_background_step_total",
			Help: "Background persistence sub-step outcomes.",
		}, []string{"step", "outcome"}),

		BackgroundDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_background_dropped_total",
			Help: "Background jobs dropped because the queue was full.",
		}),

		BackgroundQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chat_background_queue_depth",
			Help: "Jobs currently waiting in the background queue.",
		}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_rate_limit_hit_total",
			Help: "Requests rejected by rate limiting.",
		}, []string{"dimension"}),
	}
}

// RequestLabels holds the label values for recording a completed request.
type RequestLabels struct {
	Status     string
	Model      string
	RAGUsed    bool
	DurationMs float64
}

// RecordRequest records metrics for a completed chat request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	ragUsed := "false"
	if labels.RAGUsed {
		ragUsed = "true"
	}
	m.RequestTotal.WithLabelValues(labels.Status, labels.Model, ragUsed).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Model).Observe(labels.DurationMs)
}

// RecordBranchFailure counts a degraded retrieval branch.
func (m *Metrics) RecordBranchFailure(branch string) {
	m.BranchFailureTotal.WithLabelValues(branch).Inc()
}

// RecordCacheOp counts a response-cache lookup result ("hit" or "miss").
func (m *Metrics) RecordCacheOp(branch, result string) {
	m.CacheOpsTotal.WithLabelValues(branch, result).Inc()
}

// RecordFallback counts a fallback response ("timeout", "unavailable", "empty").
func (m *Metrics) RecordFallback(reason string) {
	m.FallbackTotal.WithLabelValues(reason).Inc()
}

// RecordBackgroundStep counts a background sub-step outcome ("ok" or "error").
func (m *Metrics) RecordBackgroundStep(step, outcome string) {
	m.BackgroundStepTotal.WithLabelValues(step, outcome).Inc()
}

// RecordRateLimitHit counts a rate-limited request.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}
