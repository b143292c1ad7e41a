// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lecture_notes"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Relay session metrics
	RelaySessionsTotal  prometheus.Counter
	RelaySessionsActive prometheus.Gauge
	RelaySessionOutcome *prometheus.CounterVec
	RelaySessionSeconds prometheus.Histogram

	// Audio metrics
	AudioBytesForwarded  prometheus.Counter
	AudioFramesForwarded prometheus.Counter

	// Transcript metrics
	TranscriptsForwarded *prometheus.CounterVec
	EnvelopesSkipped     prometheus.Counter

	// Completion metrics
	CompletionAttempts  *prometheus.CounterVec
	CompletionThrottled *prometheus.CounterVec
	CompletionLatency   *prometheus.HistogramVec
	CompletionFailures  *prometheus.CounterVec

	// Document metrics
	DocumentsGenerated *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Edge metrics
	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec
	GRPCRequests    *prometheus.CounterVec
	RateLimiterSize prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RelaySessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_sessions_total",
			Help:      "Total number of transcription relay sessions accepted",
		}),
		RelaySessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_sessions_active",
			Help:      "Number of relay sessions currently streaming",
		}),
		RelaySessionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_session_outcomes_total",
			Help:      "Relay sessions by terminal outcome",
		}, []string{"outcome"}),
		RelaySessionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_session_duration_seconds",
			Help:      "Duration of relay sessions in seconds",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 1800, 3600, 7200},
		}),

		AudioBytesForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_forwarded_total",
			Help:      "Total audio bytes forwarded upstream",
		}),
		AudioFramesForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_forwarded_total",
			Help:      "Total audio frames forwarded upstream",
		}),

		TranscriptsForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_forwarded_total",
			Help:      "Transcript events forwarded to clients",
		}, []string{"final"}),
		EnvelopesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_envelopes_skipped_total",
			Help:      "Upstream messages skipped as malformed or irrelevant",
		}),

		CompletionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_attempts_total",
			Help:      "Completion attempts by provider and HTTP status",
		}, []string{"provider", "status"}),
		CompletionThrottled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_throttled_total",
			Help:      "Completion attempts rejected with 429",
		}, []string{"provider"}),
		CompletionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Completion call latency including retries",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"provider"}),
		CompletionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_failures_total",
			Help:      "Completion calls that failed after the retry policy",
		}, []string{"provider", "reason"}),

		DocumentsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_generated_total",
			Help:      "Summary and notes documents produced",
		}, []string{"kind", "fallback"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the edge rate limiter",
		}, []string{"scope"}),
		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Admin gRPC requests by method and code",
		}, []string{"method", "code"}),
		RateLimiterSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limiter_tracked_identities",
			Help:      "Identities currently tracked by the rate limiter",
		}),
	}
}

// RecordSessionStart records a relay session entering the streaming state.
func (m *Metrics) RecordSessionStart() {
	m.RelaySessionsTotal.Inc()
	m.RelaySessionsActive.Inc()
}

// RecordSessionStreamEnd records a streaming relay session ending.
func (m *Metrics) RecordSessionStreamEnd(durationSeconds float64) {
	m.RelaySessionsActive.Dec()
	m.RelaySessionSeconds.Observe(durationSeconds)
}

// RecordSessionOutcome records the terminal outcome of a relay session.
func (m *Metrics) RecordSessionOutcome(outcome string) {
	m.RelaySessionOutcome.WithLabelValues(outcome).Inc()
}

// RecordAudioForwarded records one audio frame forwarded upstream.
func (m *Metrics) RecordAudioForwarded(bytes int) {
	m.AudioBytesForwarded.Add(float64(bytes))
	m.AudioFramesForwarded.Inc()
}

// RecordTranscriptForwarded records a transcript event sent to a client.
func (m *Metrics) RecordTranscriptForwarded(final bool) {
	m.TranscriptsForwarded.WithLabelValues(strconv.FormatBool(final)).Inc()
}

// RecordEnvelopeSkipped records an upstream message that produced no event.
func (m *Metrics) RecordEnvelopeSkipped() {
	m.EnvelopesSkipped.Inc()
}

// RecordCompletionAttempt records one completion attempt. status 0 means transport failure.
func (m *Metrics) RecordCompletionAttempt(provider string, status int) {
	m.CompletionAttempts.WithLabelValues(provider, strconv.Itoa(status)).Inc()
	if status == 429 {
		m.CompletionThrottled.WithLabelValues(provider).Inc()
	}
}

// RecordCompletion records the end of a completion call.
func (m *Metrics) RecordCompletion(provider string, err error, reason string, latencySeconds float64) {
	m.CompletionLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.CompletionFailures.WithLabelValues(provider, reason).Inc()
	}
}

// RecordDocument records a normalized document.
func (m *Metrics) RecordDocument(kind string, fallback bool) {
	m.DocumentsGenerated.WithLabelValues(kind, strconv.FormatBool(fallback)).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, code int, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(scope string) {
	m.RateLimited.WithLabelValues(scope).Inc()
}

// RecordGRPCRequest records an admin gRPC call.
func (m *Metrics) RecordGRPCRequest(method, code string) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}
