package observability

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute is the label value used for requests that do not
// match any registered route, ensuring bounded cardinality.
const unmatchedRoute = "unmatched"

// inFlightRoute is the label value used for tracking in-flight
// requests before the route is known.
const inFlightRoute = "in_flight"

// WebSocket message direction labels.
const (
	DirectionClientToBackend = "client_to_backend"
	DirectionBackendToClient = "backend_to_client"
)

// Metrics holds all Prometheus metrics for the proxy.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  *prometheus.GaugeVec
	wsConnections   prometheus.Gauge
	wsMessages      *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	circuitBreaker  *prometheus.GaugeVec
	buildInfo       *prometheus.GaugeVec
	startTime       prometheus.Gauge
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "chp"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route", "status"},
	)

	m.requestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(
				100, 10, 8,
			),
		},
		[]string{"method", "route"},
	)

	m.responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(
				100, 10, 8,
			),
		},
		[]string{"method", "route", "status"},
	)

	m.activeRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help: "Number of active HTTP " +
				"requests",
		},
		[]string{"method", "route"},
	)

	m.wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help: "Number of active WebSocket " +
				"connections",
		},
	)

	m.wsMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help: "Total number of relayed " +
				"WebSocket messages",
		},
		[]string{"direction"},
	)

	m.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help: "Total number of upstream " +
				"request failures",
		},
		[]string{"reason"},
	)

	m.circuitBreaker = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help: "Circuit breaker state " +
				"(0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the proxy",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help: "Start time of the proxy " +
				"in unix seconds",
		},
	)

	m.registerCollectors()

	m.startTime.SetToCurrentTime()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestSize,
		m.responseSize,
		m.activeRequests,
		m.wsConnections,
		m.wsMessages,
		m.upstreamErrors,
		m.circuitBreaker,
		m.buildInfo,
		m.startTime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// InitVecMetrics pre-populates common label combinations with zero
// values so that Vec metrics appear in /metrics output immediately
// after startup. Prometheus *Vec types only emit metric lines after
// WithLabelValues() is called at least once. This method is idempotent.
func (m *Metrics) InitVecMetrics() {
	m.wsMessages.WithLabelValues(DirectionClientToBackend)
	m.wsMessages.WithLabelValues(DirectionBackendToClient)

	reasons := []string{
		"bad_gateway",
		"circuit_open",
		"connection_refused",
		"dial",
		"invalid_target",
		"timeout",
	}
	for _, reason := range reasons {
		m.upstreamErrors.WithLabelValues(reason)
	}
}

// RecordRequest records a completed HTTP request.
// The route parameter should be the matched route prefix, not the raw
// request path, to prevent cardinality explosion.
func (m *Metrics) RecordRequest(
	method, route string,
	status int,
	duration time.Duration,
	reqSize, respSize int64,
) {
	statusStr := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(
		method, route, statusStr,
	).Inc()
	m.requestDuration.WithLabelValues(
		method, route, statusStr,
	).Observe(duration.Seconds())
	m.requestSize.WithLabelValues(
		method, route,
	).Observe(float64(reqSize))
	m.responseSize.WithLabelValues(
		method, route, statusStr,
	).Observe(float64(respSize))
}

// WebSocketConnectionOpened increments the active WebSocket
// connections gauge.
func (m *Metrics) WebSocketConnectionOpened() {
	m.wsConnections.Inc()
}

// WebSocketConnectionClosed decrements the active WebSocket
// connections gauge.
func (m *Metrics) WebSocketConnectionClosed() {
	m.wsConnections.Dec()
}

// RecordWebSocketMessage records a relayed WebSocket message.
func (m *Metrics) RecordWebSocketMessage(direction string) {
	m.wsMessages.WithLabelValues(direction).Inc()
}

// RecordUpstreamError records a failed upstream request.
func (m *Metrics) RecordUpstreamError(reason string) {
	m.upstreamErrors.WithLabelValues(reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state.
func (m *Metrics) SetCircuitBreakerState(
	name string, state int,
) {
	m.circuitBreaker.WithLabelValues(name).Set(float64(state))
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(
	version, commit, buildTime string,
) {
	m.buildInfo.WithLabelValues(
		version, commit, buildTime,
	).Set(1)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		m.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterCollector registers an additional collector with the custom
// registry. It returns an error if the collector is already registered
// or conflicts with an existing one. This allows external packages
// (e.g. route table metrics) to share the same registry that backs
// the /metrics endpoint.
func (m *Metrics) RegisterCollector(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// MustRegisterCollector registers an additional collector with the
// custom registry, panicking on error.
func (m *Metrics) MustRegisterCollector(c prometheus.Collector) {
	m.registry.MustRegister(c)
}

// routeRecorderKey is the context key under which the route recorder
// is stored.
const routeRecorderKey contextKey = "route_recorder"

// routeRecorder carries the matched route prefix from the proxy handler
// back to the middleware that observes the finished request. Context
// values are immutable, so the middleware seeds a pointer before the
// handler runs and the handler fills it in synchronously.
type routeRecorder struct {
	route string
}

// contextWithRouteRecorder returns a context carrying an empty route
// recorder, along with the recorder itself.
func contextWithRouteRecorder(ctx context.Context) (context.Context, *routeRecorder) {
	rec := &routeRecorder{}
	return context.WithValue(ctx, routeRecorderKey, rec), rec
}

// SetMatchedRoute records the route prefix chosen for the current
// request. It is a no-op if no recorder is present in the context.
func SetMatchedRoute(ctx context.Context, route string) {
	if rec, ok := ctx.Value(routeRecorderKey).(*routeRecorder); ok {
		rec.route = route
	}
}

// MatchedRouteFromContext returns the recorded route prefix, or the
// empty string if none was recorded.
func MatchedRouteFromContext(ctx context.Context) string {
	if rec, ok := ctx.Value(routeRecorderKey).(*routeRecorder); ok {
		return rec.route
	}
	return ""
}

// MetricsMiddleware returns a middleware that records request metrics.
// It reads the route prefix recorded by the proxy handler instead of
// using the raw request path, preventing metrics cardinality explosion
// from dynamic path segments.
func MetricsMiddleware(
	metrics *Metrics,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				method := r.Method

				ctx, rec := contextWithRouteRecorder(r.Context())
				r = r.WithContext(ctx)

				rw := &metricsResponseWriter{
					ResponseWriter: w,
					status:         http.StatusOK,
				}

				// Track active requests (route not yet known)
				metrics.activeRequests.WithLabelValues(
					method, inFlightRoute,
				).Inc()

				next.ServeHTTP(rw, r)

				metrics.activeRequests.WithLabelValues(
					method, inFlightRoute,
				).Dec()

				route := rec.route
				if route == "" {
					route = unmatchedRoute
				}

				metrics.RecordRequest(
					method, route, rw.status,
					time.Since(start),
					r.ContentLength, int64(rw.size),
				)
			},
		)
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture
// metrics.
type metricsResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Flush implements http.Flusher interface for streaming support.
func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker interface for WebSocket support.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
