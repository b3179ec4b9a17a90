package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// reloadMetrics holds Prometheus metrics for configuration reload
// operations, registered with the proxy's custom registry so they
// appear on the metrics endpoint.
type reloadMetrics struct {
	reloadTotal       *prometheus.CounterVec
	reloadLastSuccess prometheus.Gauge
	watcherStatus     prometheus.Gauge
}

// newReloadMetrics creates reload metrics and registers them with the
// provided Metrics instance.
func newReloadMetrics(m *observability.Metrics) *reloadMetrics {
	rm := &reloadMetrics{
		reloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "config_reload_total",
				Help:      "Total number of configuration reloads",
			},
			[]string{"result"},
		),
		reloadLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "config_reload_last_success_timestamp",
				Help:      "Timestamp of last successful config reload",
			},
		),
		watcherStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "config_watcher_running",
				Help:      "Whether the config file watcher is running (1=running, 0=stopped)",
			},
		),
	}

	collectors := []prometheus.Collector{
		rm.reloadTotal,
		rm.reloadLastSuccess,
		rm.watcherStatus,
	}
	for _, c := range collectors {
		// Ignore duplicate registration errors (safe because
		// descriptors are identical when re-registered).
		_ = m.RegisterCollector(c)
	}

	return rm
}

// startConfigWatcher starts the configuration watcher. Without a
// configuration file there is nothing to watch.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath,
		func(newCfg *config.Config) {
			logger.Info("configuration changed, reloading")
			applyConfigChange(app, newCfg, logger)
		},
		config.WithLogger(logger),
		config.WithErrorCallback(func(error) {
			app.reloadMetrics.reloadTotal.WithLabelValues("error").Inc()
		}),
	)
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		app.reloadMetrics.watcherStatus.Set(0)
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		app.reloadMetrics.watcherStatus.Set(0)
		return watcher
	}

	app.reloadMetrics.watcherStatus.Set(1)
	return watcher
}

// applyConfigChange applies the reloadable subset of a changed
// configuration: the admin token, the default target, and the log
// level. Listener addresses and TLS are fixed at startup, and the
// admin API owns the route table at runtime, so seed routes are not
// re-applied. The watcher validates before invoking this callback.
func applyConfigChange(app *application, newCfg *config.Config, logger observability.Logger) {
	if newCfg.API.AuthToken != app.currentAuthToken() {
		app.setAuthToken(newCfg.API.AuthToken)
		logger.Info("admin token rotated")
	}

	if newCfg.Proxy.DefaultTarget != app.table.DefaultTarget() {
		app.table.SetDefaultTarget(newCfg.Proxy.DefaultTarget)
		logger.Info("default target updated",
			observability.String("target", newCfg.Proxy.DefaultTarget),
		)
	}

	if err := logger.SetLevel(newCfg.Logging.Level); err != nil {
		logger.Warn("invalid log level in configuration", observability.Error(err))
	}

	app.config = newCfg
	app.reloadMetrics.reloadTotal.WithLabelValues("success").Inc()
	app.reloadMetrics.reloadLastSuccess.SetToCurrentTime()
}
