// Package metrics defines the Prometheus instrumentation shared by the
// webhook handler and the Graylog client.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AlertsReceived counts alerts received from Graylog, labeled by
	// outcome (accepted, rejected, error).
	AlertsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylog_agent_alerts_received_total",
			Help: "Total number of alerts received from Graylog",
		},
		[]string{"outcome"},
	)

	// AlertsStored counts alerts persisted to the local store, labeled
	// by whether the fingerprint was new or deduplicated.
	AlertsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylog_agent_alerts_stored_total",
			Help: "Total number of alerts written to the alert store",
		},
		[]string{"dedup"},
	)

	// GraylogRequests counts outbound requests to the Graylog API,
	// labeled by operation and status.
	GraylogRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylog_agent_graylog_requests_total",
			Help: "Total number of requests to the Graylog API",
		},
		[]string{"operation", "status"},
	)

	// ProcessingDuration observes end-to-end webhook processing latency.
	ProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graylog_agent_processing_duration_seconds",
			Help:    "Webhook payload processing latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(AlertsReceived)
	prometheus.MustRegister(AlertsStored)
	prometheus.MustRegister(GraylogRequests)
	prometheus.MustRegister(ProcessingDuration)
}
