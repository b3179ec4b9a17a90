package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// stubRoundTripper counts calls and answers with a canned response or
// error.
type stubRoundTripper struct {
	calls int
	fn    func() (*http.Response, error)
}

func (s *stubRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	s.calls++
	return s.fn()
}

func stubResponse(status int) (*http.Response, error) {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     http.Header{},
	}, nil
}

func breakerRequest(t *testing.T) *http.Request {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "http://backend.internal/", nil)
	require.NoError(t, err)
	return req
}

func TestNewBreakerTransport_Disabled(t *testing.T) {
	t.Parallel()

	next := &stubRoundTripper{}
	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{Enabled: false},
		next,
		observability.NopLogger(),
		nil,
	)

	assert.Equal(t, http.RoundTripper(next), rt)
}

func TestNewBreakerTransport_NilNext(t *testing.T) {
	t.Parallel()

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{Enabled: true},
		nil,
		observability.NopLogger(),
		nil,
	)

	bt, ok := rt.(*breakerTransport)
	require.True(t, ok)
	assert.Equal(t, http.DefaultTransport, bt.next)
}

func TestBreakerTransport_Success(t *testing.T) {
	t.Parallel()

	next := &stubRoundTripper{fn: func() (*http.Response, error) {
		return stubResponse(http.StatusOK)
	}}

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{Enabled: true},
		next,
		observability.NopLogger(),
		nil,
	)

	resp, err := rt.RoundTrip(breakerRequest(t))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, next.calls)
}

func TestBreakerTransport_ServerErrorReturnedToCaller(t *testing.T) {
	t.Parallel()

	next := &stubRoundTripper{fn: func() (*http.Response, error) {
		return stubResponse(http.StatusInternalServerError)
	}}

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  100, // Keep the breaker closed for this test
			FailureRatio: 0.5,
		},
		next,
		observability.NopLogger(),
		nil,
	)

	resp, err := rt.RoundTrip(breakerRequest(t))

	// A 5xx counts as a breaker failure but reaches the caller as a
	// normal response.
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestBreakerTransport_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	next := &stubRoundTripper{fn: func() (*http.Response, error) {
		return nil, errors.New("connection reset")
	}}

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  2,
			FailureRatio: 0.5,
			Timeout:      config.Duration(time.Minute),
		},
		next,
		observability.NopLogger(),
		nil,
	)

	for i := 0; i < 2; i++ {
		_, err := rt.RoundTrip(breakerRequest(t))
		require.Error(t, err)
	}
	require.Equal(t, 2, next.calls)

	// The breaker is open now; the transport never sees the request.
	_, err := rt.RoundTrip(breakerRequest(t))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerTransport_5xxTripsBreaker(t *testing.T) {
	t.Parallel()

	next := &stubRoundTripper{fn: func() (*http.Response, error) {
		return stubResponse(http.StatusBadGateway)
	}}

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  2,
			FailureRatio: 0.5,
			Timeout:      config.Duration(time.Minute),
		},
		next,
		observability.NopLogger(),
		nil,
	)

	for i := 0; i < 2; i++ {
		resp, err := rt.RoundTrip(breakerRequest(t))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}

	_, err := rt.RoundTrip(breakerRequest(t))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerTransport_RecoversAfterTimeout(t *testing.T) {
	t.Parallel()

	healthy := false
	next := &stubRoundTripper{fn: func() (*http.Response, error) {
		if healthy {
			return stubResponse(http.StatusOK)
		}
		return nil, errors.New("connection reset")
	}}

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  2,
			FailureRatio: 0.5,
			MaxRequests:  1,
			Timeout:      config.Duration(50 * time.Millisecond),
		},
		next,
		observability.NopLogger(),
		nil,
	)

	for i := 0; i < 2; i++ {
		_, err := rt.RoundTrip(breakerRequest(t))
		require.Error(t, err)
	}
	_, err := rt.RoundTrip(breakerRequest(t))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	// Backend recovers and the open timeout elapses.
	healthy = true
	time.Sleep(60 * time.Millisecond)

	resp, err := rt.RoundTrip(breakerRequest(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBreakerTransport_StateChangeMetric(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("chp_breaker_test")

	next := &stubRoundTripper{fn: func() (*http.Response, error) {
		return nil, errors.New("connection reset")
	}}

	rt := NewBreakerTransport(
		config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  2,
			FailureRatio: 0.5,
			Timeout:      config.Duration(time.Minute),
		},
		next,
		observability.NopLogger(),
		metrics,
	)

	for i := 0; i < 2; i++ {
		_, _ = rt.RoundTrip(breakerRequest(t))
	}

	// State 2 is open.
	assertMetricContains(t, metrics,
		`chp_breaker_test_circuit_breaker_state{name="upstream"} 2`)
}

func assertMetricContains(t *testing.T, metrics *observability.Metrics, want string) {
	t.Helper()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), want)
}
