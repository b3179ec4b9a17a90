package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

func TestNewChecker(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())

	require.NotNil(t, checker)
	assert.Equal(t, "1.0.0", checker.version)
	assert.NotNil(t, checker.checks)
	assert.False(t, checker.IsDraining())
}

func TestNewChecker_NilLogger(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", nil)

	require.NotNil(t, checker)
	assert.NotNil(t, checker.logger)
}

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.2.3", observability.NopLogger())

	response := checker.Health()

	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "1.2.3", response.Version)
	assert.NotEmpty(t, response.Uptime)
	assert.False(t, response.Timestamp.IsZero())
	assert.Nil(t, response.Details)
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		checks         map[string]CheckFunc
		expectedStatus Status
	}{
		{
			name:           "no checks",
			checks:         map[string]CheckFunc{},
			expectedStatus: StatusHealthy,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"routes": func() Check { return Check{Status: StatusHealthy} },
				"admin":  func() Check { return Check{Status: StatusHealthy} },
			},
			expectedStatus: StatusHealthy,
		},
		{
			name: "one degraded",
			checks: map[string]CheckFunc{
				"routes": func() Check { return Check{Status: StatusHealthy} },
				"admin":  func() Check { return Check{Status: StatusDegraded, Message: "slow"} },
			},
			expectedStatus: StatusDegraded,
		},
		{
			name: "unhealthy wins over degraded",
			checks: map[string]CheckFunc{
				"routes": func() Check { return Check{Status: StatusDegraded} },
				"admin":  func() Check { return Check{Status: StatusUnhealthy, Message: "down"} },
			},
			expectedStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewChecker("1.0.0", observability.NopLogger())
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			response := checker.Readiness()

			assert.Equal(t, tt.expectedStatus, response.Status)
			assert.Len(t, response.Checks, len(tt.checks))
		})
	}
}

func TestChecker_UnregisterCheck(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())
	checker.RegisterCheck("flaky", func() Check {
		return Check{Status: StatusUnhealthy}
	})

	assert.Equal(t, StatusUnhealthy, checker.Readiness().Status)

	checker.UnregisterCheck("flaky")

	assert.Equal(t, StatusHealthy, checker.Readiness().Status)
}

func TestChecker_SetDraining(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())

	assert.False(t, checker.IsDraining())

	checker.SetDraining(true)
	assert.True(t, checker.IsDraining())

	// Idempotent
	checker.SetDraining(true)
	assert.True(t, checker.IsDraining())

	checker.SetDraining(false)
	assert.False(t, checker.IsDraining())
}

func TestChecker_Health_Draining(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())
	checker.SetDraining(true)

	response := checker.Health()

	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Equal(t, "draining", response.Details["reason"])
}

func TestChecker_HealthHandler(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())
	handler := checker.HealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get(HeaderContentType))

	var response HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "1.0.0", response.Version)
}

func TestChecker_HealthHandler_Draining(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())
	checker.SetDraining(true)

	handler := checker.HealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var response HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Equal(t, "draining", response.Details["reason"])
}

func TestChecker_HealthHandler_DrainingThenRecovered(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())
	handler := checker.HealthHandler()

	checker.SetDraining(true)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.SetDraining(false)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChecker_ReadinessHandler(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		checker := NewChecker("1.0.0", observability.NopLogger())
		checker.RegisterCheck("routes", func() Check {
			return Check{Status: StatusHealthy, Message: "5 routes"}
		})

		handler := checker.ReadinessHandler()

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response ReadinessResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, StatusHealthy, response.Status)
		assert.Equal(t, "5 routes", response.Checks["routes"].Message)
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()

		checker := NewChecker("1.0.0", observability.NopLogger())
		checker.RegisterCheck("backend", func() Check {
			return Check{Status: StatusUnhealthy, Message: "connection refused"}
		})

		handler := checker.ReadinessHandler()

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("draining", func(t *testing.T) {
		t.Parallel()

		checker := NewChecker("1.0.0", observability.NopLogger())
		checker.SetDraining(true)

		handler := checker.ReadinessHandler()

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var response ReadinessResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "service is draining", response.Checks["draining"].Message)
	})

	t.Run("degraded still returns 200", func(t *testing.T) {
		t.Parallel()

		checker := NewChecker("1.0.0", observability.NopLogger())
		checker.RegisterCheck("cache", func() Check {
			return Check{Status: StatusDegraded}
		})

		handler := checker.ReadinessHandler()

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChecker_LivenessHandler(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.0.0", observability.NopLogger())
	handler := checker.LivenessHandler()

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	// Liveness ignores draining
	checker.SetDraining(true)
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
