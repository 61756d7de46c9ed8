package metrics

import "github.com/prometheus/client_golang/prometheus"

// TrackingMetrics covers the live order-status push channels.
type TrackingMetrics struct {
	subscriptions prometheus.Gauge
	delivered     prometheus.Counter
	pruned        prometheus.Counter
	dropped       prometheus.Counter
}

// NewTrackingMetrics registers the tracking metrics on the provided registerer.
func NewTrackingMetrics(reg prometheus.Registerer) *TrackingMetrics {
	if reg == nil {
		return &TrackingMetrics{}
	}
	m := &TrackingMetrics{
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brewline_tracking_subscriptions",
			Help: "Live order status channels currently registered.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewline_tracking_messages_delivered_total",
			Help: "Status messages pushed to a channel successfully.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewline_tracking_channels_pruned_total",
			Help: "Channels removed after a failed send.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewline_tracking_events_dropped_total",
			Help: "Status events discarded because the dispatch queue was full.",
		}),
	}
	reg.MustRegister(m.subscriptions, m.delivered, m.pruned, m.dropped)
	return m
}

func (m *TrackingMetrics) IncSubscriptions() {
	if m == nil || m.subscriptions == nil {
		return
	}
	m.subscriptions.Inc()
}

func (m *TrackingMetrics) DecSubscriptions() {
	if m == nil || m.subscriptions == nil {
		return
	}
	m.subscriptions.Dec()
}

func (m *TrackingMetrics) AddDelivered(n int) {
	if m == nil || m.delivered == nil || n <= 0 {
		return
	}
	m.delivered.Add(float64(n))
}

func (m *TrackingMetrics) AddPruned(n int) {
	if m == nil || m.pruned == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *TrackingMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
