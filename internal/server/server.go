package server

import (
	"net/http"

	"github.com/vyrodovalexey/gochp/internal/health"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// NewOpsHandler assembles the operational endpoints served on the ops
// listener: Prometheus metrics plus the health, readiness, and
// liveness probes.
func NewOpsHandler(
	metrics *observability.Metrics,
	checker *health.Checker,
	metricsPath string,
) http.Handler {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())
	mux.Handle("/health", checker.HealthHandler())
	mux.Handle("/ready", checker.ReadinessHandler())
	mux.Handle("/live", checker.LivenessHandler())

	return mux
}
