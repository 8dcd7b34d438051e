// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for smsrelay.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay kinds.
const (
	KindDirect = "direct"
	KindSMS    = "sms"
)

// Relay outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the smsrelay metric instruments.
type Metrics struct {
	HTTPRequestsTotal *prometheus.CounterVec
	RelaysTotal       *prometheus.CounterVec
	RelayLatency      prometheus.Histogram
	DevicesRegistered prometheus.Gauge
	RateLimitedTotal  prometheus.Counter
}

// NewMetrics creates the instruments and registers them with reg.
// Pass prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smsrelay_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"route", "status"}),
		RelaysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smsrelay_relays_total",
			Help: "Outbound Telegram relays, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RelayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smsrelay_relay_latency_seconds",
			Help:    "Latency of outbound Telegram relays.",
			Buckets: prometheus.DefBuckets,
		}),
		DevicesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smsrelay_devices_registered",
			Help: "Devices currently in the registry.",
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smsrelay_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.RelaysTotal,
			m.RelayLatency,
			m.DevicesRegistered,
			m.RateLimitedTotal,
		)
	}
	return m
}

// RecordRequest counts one served HTTP request.
func (m *Metrics) RecordRequest(route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordRelay records an outbound relay with its outcome and latency.
func (m *Metrics) RecordRelay(kind, outcome string, latencySeconds float64) {
	m.RelaysTotal.WithLabelValues(kind, outcome).Inc()
	m.RelayLatency.Observe(latencySeconds)
}
