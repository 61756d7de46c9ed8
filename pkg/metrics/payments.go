package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records outbound processor calls.
type PaymentMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brewline_payment_calls_total",
		Help: "Payment processor calls by provider, operation and outcome.",
	}, []string{"provider", "operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brewline_payment_call_duration_seconds",
		Help:    "Latency of payment processor calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	reg.MustRegister(calls, duration)
	return &PaymentMetrics{calls: calls, duration: duration}
}

// Observe records a single processor call.
func (p *PaymentMetrics) Observe(provider, operation, outcome string, took time.Duration) {
	if p == nil || p.calls == nil {
		return
	}
	provider = normalizeLabel(provider)
	operation = normalizeLabel(operation)
	p.calls.WithLabelValues(provider, operation, normalizeLabel(outcome)).Inc()
	p.duration.WithLabelValues(provider, operation).Observe(took.Seconds())
}
