package routes

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mutation operation label values.
const (
	opSet    = "set"
	opDelete = "delete"
)

// Lookup result label values.
const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupDefault = "default"
)

// Metrics exposes Prometheus metrics for route table operations. It
// implements prometheus.Collector so it can be registered with the
// registry that backs the /metrics endpoint.
type Metrics struct {
	routesActive prometheus.Gauge
	updates      *prometheus.CounterVec
	lookups      *prometheus.CounterVec
}

// NewMetrics creates route table metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "chp"
	}

	return &Metrics{
		routesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "routes",
				Name:      "active",
				Help:      "Number of currently registered routes",
			},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routes",
				Name:      "updates_total",
				Help:      "Total number of route table mutations",
			},
			[]string{"op"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "routes",
				Name:      "lookups_total",
				Help:      "Total number of route lookups",
			},
			[]string{"result"},
		),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.routesActive.Describe(ch)
	m.updates.Describe(ch)
	m.lookups.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.routesActive.Collect(ch)
	m.updates.Collect(ch)
	m.lookups.Collect(ch)
}

// RecordSet records a route upsert.
func (m *Metrics) RecordSet() {
	m.updates.WithLabelValues(opSet).Inc()
}

// RecordDelete records a route removal.
func (m *Metrics) RecordDelete() {
	m.updates.WithLabelValues(opDelete).Inc()
}

// RecordLookup records a route lookup outcome.
func (m *Metrics) RecordLookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

// SetRouteCount sets the registered-routes gauge.
func (m *Metrics) SetRouteCount(n int) {
	m.routesActive.Set(float64(n))
}
