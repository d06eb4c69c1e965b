// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result sources for inference metrics.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
	SourceNeutral  = "neutral"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// StyleAnalysesTotal counts style profiles produced, by where they came from.
	StyleAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "style_analyses_total",
			Help: "Total style profiles produced",
		},
		[]string{"source"},
	)

	// ReplyDraftsTotal counts draft replies produced, by where they came from.
	ReplyDraftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_drafts_total",
			Help: "Total draft replies produced",
		},
		[]string{"source"},
	)

	// InferenceDuration tracks calls to the inference service.
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_duration_seconds",
			Help:    "Inference service call duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"operation", "provider"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// AnalysesInFlight tracks style analyses currently running.
	AnalysesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyses_in_flight",
			Help: "Number of style analyses in flight",
		},
	)

	// WorkflowNoops counts workflow calls that changed nothing.
	WorkflowNoops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_noops_total",
			Help: "Workflow calls rejected or skipped without a state change",
		},
		[]string{"workflow", "reason"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// NATSPublished counts events forwarded to JetStream.
	NATSPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_events_published_total",
			Help: "Contact events forwarded to NATS",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordInference records one call to the inference service.
func RecordInference(operation, provider, model string, duration float64, tokensIn, tokensOut int) {
	InferenceDuration.WithLabelValues(operation, provider).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordNoop records a workflow call that was a no-op.
func RecordNoop(workflow, reason string) {
	WorkflowNoops.WithLabelValues(workflow, reason).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
