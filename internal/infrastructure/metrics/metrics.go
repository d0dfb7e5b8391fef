// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered on an explicit Registerer rather than the global
// default so tests can build isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graylogic_things"

// Cycle outcomes recorded by update loops.
const (
	OutcomeCommitted = "committed"
	OutcomeSkipped   = "skipped"
	OutcomeFatal     = "fatal"
)

// Notification outcomes recorded by the dispatcher.
const (
	EventEnqueued  = "enqueued"
	EventDropped   = "dropped"
	EventDelivered = "delivered"
)

// Metrics holds every collector of the service.
type Metrics struct {
	registry *prometheus.Registry

	UpdateCycles   *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
	PropertyValue  *prometheus.GaugeVec

	NotifyEvents     *prometheus.CounterVec
	NotifySinkErrors *prometheus.CounterVec
	NotifyQueueDepth prometheus.Gauge

	HTTPRequests     *prometheus.CounterVec
	WebSocketClients prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		UpdateCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_cycles_total",
				Help:      "Update loop cycles by thing, property and outcome.",
			},
			[]string{"thing", "property", "outcome"},
		),
		UpdateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_cycle_duration_seconds",
				Help:      "Time from reading acquisition to notification.",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"thing", "property"},
		),
		PropertyValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "property_value",
				Help:      "Last committed property value.",
			},
			[]string{"thing", "property"},
		),
		NotifyEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_events_total",
				Help:      "Property change events by outcome.",
			},
			[]string{"outcome"},
		),
		NotifySinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_sink_errors_total",
				Help:      "Failed deliveries by sink.",
			},
			[]string{"sink"},
		),
		NotifyQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notify_queue_depth",
				Help:      "Events waiting for delivery.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		WebSocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected WebSocket clients.",
			},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.UpdateCycles,
		m.UpdateDuration,
		m.PropertyValue,
		m.NotifyEvents,
		m.NotifySinkErrors,
		m.NotifyQueueDepth,
		m.HTTPRequests,
		m.WebSocketClients,
	)
	return m
}

// Handler returns the exposition handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
