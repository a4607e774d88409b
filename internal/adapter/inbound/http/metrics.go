// Package http provides the HTTP transport adapter for the proxy.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the inbound pipeline. Pass to
// components that need to record observations.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BlockedTotal    *prometheus.CounterVec
	BlocklistSize   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "botwaf",
				Name:      "requests_total",
				Help:      "Total number of inbound requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "botwaf",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		BlockedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "botwaf",
				Name:      "blocked_total",
				Help:      "Total number of requests denied, by reason",
			},
			[]string{"reason"}, // reason=ip_blocklist|rule_engine|engine_error|upstream_error|body_too_large|...
		),
		BlocklistSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "botwaf",
				Name:      "blocklist_size",
				Help:      "Number of IP addresses currently blocked",
			},
		),
	}
}
