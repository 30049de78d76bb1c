// Package metrics exposes the core's Prometheus instrumentation, grounded
// on the email-service's app/metrics/metrics.go counters/histograms
// generalized from email sends to outbox/DLQ/notifier operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	outboxRowsClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_outbox_rows_claimed_total",
			Help: "Total outbox rows claimed by the poller.",
		},
		[]string{"outcome"}, // published | retried | parked
	)

	outboxTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventcore_outbox_tick_duration_seconds",
			Help:    "Duration of one outbox poll tick.",
			Buckets: prometheus.DefBuckets,
		},
	)

	streamPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_stream_publish_total",
			Help: "Total stream appends by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	dlqParkedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_dlq_parked_total",
			Help: "Total events parked in the DLQ, by reason.",
		},
		[]string{"reason"},
	)

	dlqReprocessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_dlq_reprocess_total",
			Help: "Total DLQ reprocess attempts, by outcome.",
		},
		[]string{"outcome"}, // resolved | parked
	)

	notifierDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_notifier_dispatch_total",
			Help: "Total fanout dispatch attempts by topic and outcome.",
		},
		[]string{"topic", "outcome"}, // sent | dropped_oversize | send_failed
	)

	notifierSessionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventcore_notifier_sessions_active",
			Help: "Currently registered client sessions.",
		},
	)

	notifierMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventcore_notifier_dispatch_latency_seconds",
			Help:    "Time spent dispatching one stream message to its recipients.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"topic"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_http_requests_total",
			Help: "Total HTTP requests served by the management surface.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventcore_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordOutboxOutcome(outcome string) { outboxRowsClaimedTotal.WithLabelValues(outcome).Inc() }

func ObserveOutboxTick(d time.Duration) { outboxTickDuration.Observe(d.Seconds()) }

func RecordStreamPublish(topic, outcome string) { streamPublishTotal.WithLabelValues(topic, outcome).Inc() }

func RecordDLQParked(reason string) { dlqParkedTotal.WithLabelValues(reason).Inc() }

func RecordDLQReprocess(outcome string) { dlqReprocessTotal.WithLabelValues(outcome).Inc() }

func RecordDispatch(topic, outcome string) { notifierDispatchTotal.WithLabelValues(topic, outcome).Inc() }

func SetActiveSessions(n int) { notifierSessionsGauge.Set(float64(n)) }

func ObserveDispatchLatency(topic string, d time.Duration) {
	notifierMessageLatency.WithLabelValues(topic).Observe(d.Seconds())
}

// RecordHTTPRequest records one completed management-surface request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler exposes the process registry at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
