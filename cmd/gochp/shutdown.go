package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// run starts the listeners and blocks until shutdown. The admin and
// ops listeners come up before the public one so the proxy is fully
// manageable by the time it accepts traffic.
func run(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	if err := app.apiListener.Start(ctx); err != nil {
		logger.Fatal("failed to start admin api listener", observability.Error(err))
	}

	if app.opsListener != nil {
		if err := app.opsListener.Start(ctx); err != nil {
			logger.Fatal("failed to start ops listener", observability.Error(err))
		}
	}

	if err := app.publicListener.Start(ctx); err != nil {
		logger.Fatal("failed to start public listener", observability.Error(err))
	}

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	stopComponents(shutdownCtx, app, watcher, logger)
}

// stopComponents stops everything in drain order: probes flip first,
// then the public listener drains before the admin and ops listeners
// go away.
func stopComponents(
	ctx context.Context,
	app *application,
	watcher *config.Watcher,
	logger observability.Logger,
) {
	app.healthChecker.SetDraining(true)

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.publicListener.Stop(ctx); err != nil {
		logger.Error("failed to stop public listener gracefully", observability.Error(err))
	}

	if err := app.apiListener.Stop(ctx); err != nil {
		logger.Error("failed to stop admin api listener gracefully", observability.Error(err))
	}

	if app.opsListener != nil {
		if err := app.opsListener.Stop(ctx); err != nil {
			logger.Error("failed to stop ops listener gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("proxy stopped")
}
