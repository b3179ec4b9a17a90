package proxy

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// Circuit breaker defaults applied when the config leaves a knob unset.
const (
	defaultBreakerMinRequests  = 5
	defaultBreakerFailureRatio = 0.5
)

// upstreamStatusError marks a 5xx upstream response as a breaker
// failure without surfacing an error to the client.
type upstreamStatusError struct {
	status int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.status)
}

// breakerTransport runs every upstream request through a circuit
// breaker so a failing backend pool stops receiving traffic until it
// recovers.
type breakerTransport struct {
	cb   *gobreaker.CircuitBreaker
	next http.RoundTripper
}

// NewBreakerTransport wraps next with a circuit breaker built from the
// given config. When the breaker is disabled, next is returned
// unchanged. A nil next falls back to http.DefaultTransport.
func NewBreakerTransport(
	cfg config.CircuitBreakerConfig,
	next http.RoundTripper,
	logger observability.Logger,
	metrics *observability.Metrics,
) http.RoundTripper {
	if !cfg.Enabled {
		return next
	}

	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = defaultBreakerMinRequests
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = defaultBreakerFailureRatio
	}

	const name = "upstream"

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration(),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			if metrics != nil {
				metrics.SetCircuitBreakerState(name, int(to))
			}
		},
	}

	if metrics != nil {
		metrics.SetCircuitBreakerState(name, int(gobreaker.StateClosed))
	}

	return &breakerTransport{
		cb:   gobreaker.NewCircuitBreaker(settings),
		next: next,
	}
}

// RoundTrip implements http.RoundTripper. Transport errors and 5xx
// responses count as failures; a 5xx response is still handed back to
// the caller untouched.
func (bt *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := bt.cb.Execute(func() (interface{}, error) {
		resp, rtErr := bt.next.RoundTrip(req)
		if rtErr != nil {
			return nil, rtErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &upstreamStatusError{status: resp.StatusCode}
		}
		return resp, nil
	})

	if err != nil {
		var statusErr *upstreamStatusError
		if errors.As(err, &statusErr) {
			return result.(*http.Response), nil
		}
		return nil, err
	}

	return result.(*http.Response), nil
}
