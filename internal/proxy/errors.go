package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for proxy operations.
var (
	// ErrRouteNotFound indicates that no route spec matched the request
	// path and no default target is configured.
	ErrRouteNotFound = errors.New("no matching route found")

	// ErrInvalidTarget indicates that a registered target is not a
	// usable URL.
	ErrInvalidTarget = errors.New("invalid target URL")

	// ErrUpstreamUnavailable indicates that the upstream could not be
	// reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamTimeout indicates that the upstream request timed out.
	ErrUpstreamTimeout = errors.New("upstream request timed out")
)

// ProxyError carries the context of a failed forwarding attempt.
type ProxyError struct {
	Op      string // Operation that failed
	Spec    string // Matched route spec if applicable
	Target  string // Target URL if applicable
	Message string // Human-readable message
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Spec != "" && e.Target != "" {
		return e.formatWithSpecAndTarget()
	}
	if e.Spec != "" {
		return e.formatWithSpec()
	}
	return e.formatBasic()
}

// formatWithSpecAndTarget formats error with spec and target info.
func (e *ProxyError) formatWithSpecAndTarget() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy error [%s] spec=%s target=%s: %s: %v",
			e.Op, e.Spec, e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s] spec=%s target=%s: %s",
		e.Op, e.Spec, e.Target, e.Message)
}

// formatWithSpec formats error with spec info.
func (e *ProxyError) formatWithSpec() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy error [%s] spec=%s: %s: %v",
			e.Op, e.Spec, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s] spec=%s: %s", e.Op, e.Spec, e.Message)
}

// formatBasic formats error without spec/target info.
func (e *ProxyError) formatBasic() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy error [%s]: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s]: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ProxyError) Is(target error) bool {
	_, ok := target.(*ProxyError)
	return ok || errors.Is(e.Cause, target)
}

// NewRouteNotFoundError creates an error for a path with no route.
func NewRouteNotFoundError(path, method string) *ProxyError {
	return &ProxyError{
		Op:      "match_route",
		Message: fmt.Sprintf("no route found for %s %s", method, path),
		Cause:   ErrRouteNotFound,
	}
}

// NewInvalidTargetError creates an error for an unusable target URL.
func NewInvalidTargetError(spec, target string, cause error) *ProxyError {
	if cause == nil {
		cause = ErrInvalidTarget
	}
	return &ProxyError{
		Op:      "parse_target",
		Spec:    spec,
		Target:  target,
		Message: "invalid target URL",
		Cause:   cause,
	}
}

// NewUpstreamError creates an error for a failed upstream request.
func NewUpstreamError(spec, target string, cause error) *ProxyError {
	return &ProxyError{
		Op:      "forward",
		Spec:    spec,
		Target:  target,
		Message: "upstream request failed",
		Cause:   cause,
	}
}

// IsProxyError checks if an error is a ProxyError.
func IsProxyError(err error) bool {
	var proxyErr *ProxyError
	return errors.As(err, &proxyErr)
}

// IsRouteNotFoundError checks if an error indicates a routing miss.
func IsRouteNotFoundError(err error) bool {
	return errors.Is(err, ErrRouteNotFound)
}
