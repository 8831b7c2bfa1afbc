// Package metrics exposes Prometheus instruments for the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds every collector on a private registry so tests and multiple
// instances never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	checkouts      *prometheus.CounterVec
	fulfilments    *prometheus.CounterVec
	inventory      *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	outboxSent     prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"}),
		fulfilments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_fulfilments_total",
			Help:      "Order completion attempts by outcome.",
		}, []string{"result"}),
		inventory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_changes_total",
			Help:      "Ledgered stock changes by change type.",
		}, []string{"change_type"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway call latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "result"}),
		outboxSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Outbox events delivered to the broker.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.checkouts,
		m.fulfilments,
		m.inventory,
		m.gatewayLatency,
		m.outboxSent,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// CheckoutResult counts a checkout outcome; result is "opened" or an error code.
func (m *Metrics) CheckoutResult(result string) {
	m.checkouts.WithLabelValues(result).Inc()
}

// FulfilmentResult counts a completion outcome; result is "created",
// "replayed" or an error code.
func (m *Metrics) FulfilmentResult(result string) {
	m.fulfilments.WithLabelValues(result).Inc()
}

// InventoryChanged counts a ledger entry.
func (m *Metrics) InventoryChanged(changeType string) {
	m.inventory.WithLabelValues(changeType).Inc()
}

// ObserveGateway records the latency of a gateway call.
func (m *Metrics) ObserveGateway(operation string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayLatency.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// OutboxSent counts delivered outbox events.
func (m *Metrics) OutboxSent(n int) {
	m.outboxSent.Add(float64(n))
}
