package main

import (
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/vyrodovalexey/gochp/internal/api"
	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/health"
	"github.com/vyrodovalexey/gochp/internal/middleware"
	"github.com/vyrodovalexey/gochp/internal/observability"
	"github.com/vyrodovalexey/gochp/internal/proxy"
	"github.com/vyrodovalexey/gochp/internal/routes"
	"github.com/vyrodovalexey/gochp/internal/server"
)

// metricsNamespace prefixes all Prometheus metrics.
const metricsNamespace = "chp"

// application holds all application components.
type application struct {
	config         *config.Config
	table          *routes.Table
	publicListener *server.Listener
	apiListener    *server.Listener
	opsListener    *server.Listener
	healthChecker  *health.Checker
	metrics        *observability.Metrics
	tracer         *observability.Tracer
	reloadMetrics  *reloadMetrics

	// authToken holds the current admin token. Stored behind an
	// atomic so configuration reloads can rotate it while the admin
	// listener keeps serving.
	authToken atomic.Value
}

// setAuthToken installs a new admin token.
func (a *application) setAuthToken(token string) {
	a.authToken.Store(token)
}

// currentAuthToken returns the admin token in effect. It satisfies
// api.TokenSource.
func (a *application) currentAuthToken() string {
	token, _ := a.authToken.Load().(string)
	return token
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics(metricsNamespace)
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	metrics.InitVecMetrics()

	if len(cfg.Proxy.TrustedProxies) > 0 {
		middleware.SetGlobalIPExtractor(
			middleware.NewClientIPExtractor(cfg.Proxy.TrustedProxies),
		)
	}

	tracer := initTracer(cfg, logger)
	healthChecker := health.NewChecker(version, logger)

	table := buildRouteTable(cfg, logger, metrics)
	healthChecker.RegisterCheck("routes", func() health.Check {
		return health.Check{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d routes", table.Len()),
		}
	})

	app := &application{
		config:        cfg,
		table:         table,
		healthChecker: healthChecker,
		metrics:       metrics,
		tracer:        tracer,
	}
	app.setAuthToken(cfg.API.AuthToken)
	app.reloadMetrics = newReloadMetrics(metrics)

	dispatcher := buildDispatcher(cfg, table, logger, metrics, tracer)
	publicHandler := buildPublicChain(dispatcher, cfg, logger, metrics, tracer)

	apiServer := api.NewServer(table, app.currentAuthToken, logger)
	apiHandler := buildAdminChain(apiServer.Handler(), logger)

	app.publicListener = server.NewListener(server.ListenerConfig{
		Name:              "public",
		IP:                cfg.Public.IP,
		Port:              cfg.Public.Port,
		TLS:               cfg.Public.TLS,
		ReadHeaderTimeout: cfg.Public.Timeouts.GetEffectiveReadHeaderTimeout(),
		IdleTimeout:       cfg.Public.Timeouts.GetEffectiveIdleTimeout(),
	}, publicHandler, server.WithListenerLogger(logger))

	app.apiListener = server.NewListener(server.ListenerConfig{
		Name:              "api",
		IP:                cfg.API.IP,
		Port:              cfg.API.Port,
		TLS:               cfg.API.TLS,
		ReadHeaderTimeout: cfg.API.Timeouts.GetEffectiveReadHeaderTimeout(),
		IdleTimeout:       cfg.API.Timeouts.GetEffectiveIdleTimeout(),
	}, apiHandler, server.WithListenerLogger(logger))

	if cfg.Metrics.Enabled {
		opsHandler := server.NewOpsHandler(metrics, healthChecker, cfg.Metrics.Path)
		app.opsListener = server.NewListener(server.ListenerConfig{
			Name: "ops",
			IP:   cfg.Metrics.IP,
			Port: cfg.Metrics.Port,
		}, opsHandler, server.WithListenerLogger(logger))
	}

	return app
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SampleRate,
		Enabled:      cfg.Tracing.Enabled,
	}
	if tracerCfg.ServiceName == "" {
		tracerCfg.ServiceName = "gochp"
	}

	if cfg.Tracing.Retry != nil {
		tracerCfg.RetryConfig = &observability.OTLPRetryConfig{
			Enabled:         cfg.Tracing.Retry.Enabled,
			InitialInterval: cfg.Tracing.Retry.InitialInterval.Duration(),
			MaxInterval:     cfg.Tracing.Retry.MaxInterval.Duration(),
			MaxElapsedTime:  cfg.Tracing.Retry.MaxElapsedTime.Duration(),
		}
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// buildRouteTable builds the routing table seeded from configuration.
func buildRouteTable(
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
) *routes.Table {
	tableMetrics := routes.NewMetrics(metricsNamespace)
	metrics.MustRegisterCollector(tableMetrics)

	table := routes.NewTable(
		routes.WithDefaultTarget(cfg.Proxy.DefaultTarget),
		routes.WithLogger(logger),
		routes.WithMetrics(tableMetrics),
	)

	for spec, target := range cfg.Proxy.Routes {
		if err := table.Set(spec, target); err != nil {
			logger.Fatal("invalid seed route",
				observability.String("spec", spec),
				observability.String("target", target),
				observability.Error(err),
			)
		}
	}

	return table
}

// buildDispatcher builds the proxy dispatcher.
func buildDispatcher(
	cfg *config.Config,
	table *routes.Table,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) *proxy.Dispatcher {
	opts := []proxy.DispatcherOption{
		proxy.WithProxyLogger(logger),
		proxy.WithMetrics(metrics),
		proxy.WithTracer(tracer),
		proxy.WithTransport(proxy.NewBreakerTransport(cfg.Proxy.CircuitBreaker, nil, logger, metrics)),
	}

	if responder := buildErrorResponder(cfg, logger); responder != nil {
		opts = append(opts, proxy.WithErrorResponder(responder))
	}

	if cfg.Proxy.FlushInterval != 0 {
		opts = append(opts, proxy.WithFlushInterval(cfg.Proxy.FlushInterval.Duration()))
	}

	return proxy.NewDispatcher(table, opts...)
}

// buildErrorResponder builds the error responder when error pages are
// configured. A remote error target wins over a local page directory.
func buildErrorResponder(cfg *config.Config, logger observability.Logger) *proxy.ErrorResponder {
	if cfg.Proxy.ErrorTarget != "" {
		target, err := url.Parse(cfg.Proxy.ErrorTarget)
		if err != nil {
			logger.Fatal("invalid error target",
				observability.String("target", cfg.Proxy.ErrorTarget),
				observability.Error(err),
			)
		}
		return proxy.NewErrorResponder(target, "", logger)
	}

	if cfg.Proxy.ErrorPath != "" {
		return proxy.NewErrorResponder(nil, cfg.Proxy.ErrorPath, logger)
	}

	return nil
}

// buildPublicChain builds the middleware chain for the public listener.
func buildPublicChain(
	handler http.Handler,
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) http.Handler {
	h := handler

	if limit := cfg.Proxy.ClientMaxBodySize.Int64(); limit > 0 {
		h = middleware.BodyLimit(limit, logger)(h)
	}

	h = observability.MetricsMiddleware(metrics)(h)
	h = observability.TracingMiddleware(tracer)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)

	return h
}

// buildAdminChain builds the middleware chain for the admin listener.
// Authentication lives inside the handler so it runs before routing.
func buildAdminChain(handler http.Handler, logger observability.Logger) http.Handler {
	h := handler

	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)

	return h
}
