package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/gochp/internal/observability"
	"github.com/vyrodovalexey/gochp/internal/routes"
)

// defaultRouteLabel is the metrics label used when the default target
// served the request, so raw paths never become label values.
const defaultRouteLabel = "default"

// Dispatcher resolves each inbound request against the route table and
// forwards it to the winning backend.
type Dispatcher struct {
	table         *routes.Table
	logger        observability.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	transport     http.RoundTripper
	flushInterval time.Duration
	responder     *ErrorResponder
	ws            *websocketRelay
}

// DispatcherOption is a functional option for configuring the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithProxyLogger sets the logger for the dispatcher.
func WithProxyLogger(logger observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics sink used for upstream errors and
// WebSocket counters.
func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracer sets the tracer whose context propagates to backends.
func WithTracer(t *observability.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithTransport sets the transport for upstream requests.
func WithTransport(transport http.RoundTripper) DispatcherOption {
	return func(d *Dispatcher) {
		d.transport = transport
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.flushInterval = interval
	}
}

// WithErrorResponder sets the responder used for routing misses and
// upstream failures.
func WithErrorResponder(responder *ErrorResponder) DispatcherOption {
	return func(d *Dispatcher) {
		d.responder = responder
	}
}

// NewDispatcher creates a dispatcher over the given route table.
func NewDispatcher(table *routes.Table, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		table:         table,
		logger:        observability.NopLogger(),
		flushInterval: -1, // Immediate flush
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.responder == nil {
		d.responder = NewErrorResponder(nil, "", d.logger)
	}

	d.ws = &websocketRelay{
		logger:    d.logger,
		metrics:   d.metrics,
		transport: d.transport,
	}

	return d
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, spec, ok := d.table.FindTarget(r.URL.Path)
	if !ok {
		d.handleRouteNotFound(w, r)
		return
	}

	routeLabel := spec
	if routeLabel == "" {
		routeLabel = defaultRouteLabel
	}
	observability.SetMatchedRoute(r.Context(), routeLabel)

	targetURL, err := url.Parse(target)
	if err != nil || targetURL.Scheme == "" || targetURL.Host == "" {
		d.handleBadTarget(w, r, spec, target, err)
		return
	}

	if isWebSocketUpgrade(r) {
		d.ws.proxy(w, r, targetURL, spec)
		return
	}

	d.proxyHTTP(w, r, targetURL, spec)
}

// proxyHTTP forwards a plain HTTP request to the backend.
func (d *Dispatcher) proxyHTTP(w http.ResponseWriter, r *http.Request, target *url.URL, spec string) {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			d.director(req, target, r)
		},
		Transport:     d.transport,
		FlushInterval: d.flushInterval,
		ErrorHandler: func(rw http.ResponseWriter, req *http.Request, err error) {
			d.handleUpstreamError(rw, req, spec, target.String(), err)
		},
	}

	proxy.ServeHTTP(w, r)
}

// director rewrites the outbound request for the resolved backend. The
// original Host header travels through untouched so upstream
// applications see the host the client used.
func (d *Dispatcher) director(req *http.Request, target *url.URL, originalReq *http.Request) {
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host

	if target.Path != "" && target.Path != "/" {
		req.URL.Path = singleJoiningSlash(target.Path, req.URL.Path)
	}

	if originalReq.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}
	req.Header.Set("X-Forwarded-Host", originalReq.Host)
	req.Header.Set("X-Original-URI", originalReq.URL.RequestURI())

	if clientIP, _, err := net.SplitHostPort(originalReq.RemoteAddr); err == nil {
		req.Header.Set("X-Real-IP", clientIP)
	}
	// X-Forwarded-For is appended by httputil.ReverseProxy after the
	// director runs, chaining any client-supplied value. Hop-by-hop
	// headers are also stripped there, with Upgrade re-added for
	// upgrade requests, so the director must not touch them.

	if d.tracer != nil {
		observability.InjectTraceContext(req.Context(), req)
	}
}

// handleRouteNotFound answers a request whose path matched no spec and
// for which no default target is configured.
func (d *Dispatcher) handleRouteNotFound(w http.ResponseWriter, r *http.Request) {
	d.logger.Debug("no route for path",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
	)

	d.responder.Respond(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
}

// handleBadTarget answers a request whose winning route points at an
// unusable target URL.
func (d *Dispatcher) handleBadTarget(w http.ResponseWriter, r *http.Request, spec, target string, cause error) {
	proxyErr := NewInvalidTargetError(spec, target, cause)
	d.logger.Error("route target is not a usable URL",
		observability.String("spec", spec),
		observability.String("target", target),
		observability.Error(proxyErr),
	)
	if d.metrics != nil {
		d.metrics.RecordUpstreamError("invalid_target")
	}

	d.responder.Respond(w, r, http.StatusBadGateway, "invalid upstream target")
}

// handleUpstreamError answers a request whose upstream forward failed.
func (d *Dispatcher) handleUpstreamError(w http.ResponseWriter, r *http.Request, spec, target string, err error) {
	status, reason := classifyUpstreamError(err)

	d.logger.Error("upstream request failed",
		observability.String("spec", spec),
		observability.String("target", target),
		observability.String("reason", reason),
		observability.Error(NewUpstreamError(spec, target, err)),
	)
	if d.metrics != nil {
		d.metrics.RecordUpstreamError(reason)
	}

	d.responder.Respond(w, r, status, "failed to reach upstream")
}

// classifyUpstreamError maps a transport error to a response status
// and a metrics reason label.
func classifyUpstreamError(err error) (status int, reason string) {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return http.StatusBadGateway, "connection_refused"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "timeout"
	}

	return http.StatusBadGateway, "bad_gateway"
}

// singleJoiningSlash joins two URL path segments with exactly one
// slash between them.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

// Handler returns an http.Handler for the dispatcher.
func (d *Dispatcher) Handler() http.Handler {
	return d
}
