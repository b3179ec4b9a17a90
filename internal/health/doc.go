// Package health provides health check and readiness probe endpoints
// for the proxy.
//
// This package implements Kubernetes-compatible health and readiness
// endpoints with extensible check registration and detailed status
// reporting.
//
// # Features
//
//   - Liveness probe endpoint (/live)
//   - Health endpoint with version and uptime (/health)
//   - Readiness endpoint aggregating registered checks (/ready)
//   - Draining mode for graceful shutdown
//
// # Usage
//
//	checker := health.NewChecker(version, logger)
//	checker.RegisterCheck("routes", func() health.Check {
//	    return health.Check{Status: health.StatusHealthy}
//	})
//
//	mux.HandleFunc("/health", checker.HealthHandler())
//	mux.HandleFunc("/ready", checker.ReadinessHandler())
//	mux.HandleFunc("/live", checker.LivenessHandler())
package health
