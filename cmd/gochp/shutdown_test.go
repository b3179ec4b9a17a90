package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

func TestStopComponents(t *testing.T) {
	t.Parallel()

	cfg := testAppConfig()
	cfg.Metrics.Enabled = true
	app := initApplication(cfg, observability.NopLogger())

	ctx := context.Background()
	require.NoError(t, app.apiListener.Start(ctx))
	require.NoError(t, app.opsListener.Start(ctx))
	require.NoError(t, app.publicListener.Start(ctx))

	// The public listener must actually serve before shutdown.
	resp, err := http.Get(fmt.Sprintf("http://%s/live", app.opsListener.BoundAddr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stopComponents(stopCtx, app, nil, observability.NopLogger())

	assert.True(t, app.healthChecker.IsDraining())
	assert.False(t, app.publicListener.IsRunning())
	assert.False(t, app.apiListener.IsRunning())
	assert.False(t, app.opsListener.IsRunning())
}

func TestStopComponents_NeverStarted(t *testing.T) {
	t.Parallel()

	app := initApplication(testAppConfig(), observability.NopLogger())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Stopping listeners that never started is a no-op, not an error.
	stopComponents(stopCtx, app, nil, observability.NopLogger())

	assert.True(t, app.healthChecker.IsDraining())
	assert.False(t, app.publicListener.IsRunning())
}
