package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates proxy configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a proxy configuration.
func ValidateConfig(config *Config) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validatePublic(&config.Public)
	v.validateAPI(&config.API)
	v.validateProxy(&config.Proxy)
	v.validateLogging(&config.Logging)
	v.validateMetrics(&config.Metrics)
	v.validateTracing(&config.Tracing)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// addError records a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{
		Path:    path,
		Message: message,
	})
}

// validatePort checks that a port is in range. Zero is allowed and
// binds an ephemeral port.
func (v *Validator) validatePort(port int, path string) {
	if port < 0 || port > 65535 {
		v.addError(path, fmt.Sprintf("port must be between 0 and 65535, got %d", port))
	}
}

// validateTLS checks that certificate and key are configured together.
func (v *Validator) validateTLS(tls *TLSConfig, path string) {
	if tls == nil {
		return
	}
	if tls.CertFile == "" {
		v.addError(path+".certFile", "certFile is required when tls is set")
	}
	if tls.KeyFile == "" {
		v.addError(path+".keyFile", "keyFile is required when tls is set")
	}
}

// validateTargetURL checks that a backend target is an absolute
// http(s) URL.
func (v *Validator) validateTargetURL(value, path string) {
	u, err := url.Parse(value)
	if err != nil {
		v.addError(path, fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.addError(path, fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		v.addError(path, "host is required")
	}
}

// validatePublic validates the public listener section.
func (v *Validator) validatePublic(public *PublicConfig) {
	v.validatePort(public.Port, "public.port")
	v.validateTLS(public.TLS, "public.tls")
}

// validateAPI validates the admin API section.
func (v *Validator) validateAPI(api *APIConfig) {
	v.validatePort(api.Port, "api.port")
	v.validateTLS(api.TLS, "api.tls")

	if api.AuthToken == "" {
		v.addError("api.authToken",
			"auth token is required; set it in the configuration or via "+AuthTokenEnvVar)
	}
}

// validateProxy validates the forwarding section.
func (v *Validator) validateProxy(proxy *ProxyConfig) {
	if proxy.DefaultTarget != "" {
		v.validateTargetURL(proxy.DefaultTarget, "proxy.defaultTarget")
	}
	if proxy.ErrorTarget != "" {
		v.validateTargetURL(proxy.ErrorTarget, "proxy.errorTarget")
	}

	if proxy.ClientMaxBodySize < 0 {
		v.addError("proxy.clientMaxBodySize", "must not be negative")
	}
	if proxy.FlushInterval < 0 {
		v.addError("proxy.flushInterval", "must not be negative")
	}

	for spec, target := range proxy.Routes {
		path := fmt.Sprintf("proxy.routes[%s]", spec)
		if !strings.HasPrefix(spec, "/") {
			v.addError(path, "spec must start with /")
		}
		v.validateTargetURL(target, path)
	}

	v.validateCircuitBreaker(&proxy.CircuitBreaker, "proxy.circuitBreaker")
}

// validateCircuitBreaker validates circuit breaker settings.
func (v *Validator) validateCircuitBreaker(cb *CircuitBreakerConfig, path string) {
	if !cb.Enabled {
		return
	}
	if cb.FailureRatio < 0 || cb.FailureRatio > 1 {
		v.addError(path+".failureRatio", "must be between 0 and 1")
	}
	if cb.Interval < 0 {
		v.addError(path+".interval", "must not be negative")
	}
	if cb.Timeout < 0 {
		v.addError(path+".timeout", "must not be negative")
	}
}

// validateLogging validates the logging section.
func (v *Validator) validateLogging(logging *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if logging.Level != "" && !validLevels[logging.Level] {
		v.addError("logging.level",
			fmt.Sprintf("must be one of debug, info, warn, error, fatal, got %q", logging.Level))
	}

	if logging.Format != "" && logging.Format != "json" && logging.Format != "console" {
		v.addError("logging.format",
			fmt.Sprintf("must be json or console, got %q", logging.Format))
	}

	if logging.Output != "" && logging.Output != "stdout" && logging.Output != "stderr" {
		v.addError("logging.output",
			fmt.Sprintf("must be stdout or stderr, got %q", logging.Output))
	}
}

// validateMetrics validates the metrics section.
func (v *Validator) validateMetrics(metrics *MetricsConfig) {
	if !metrics.Enabled {
		return
	}
	v.validatePort(metrics.Port, "metrics.port")
	if metrics.Path != "" && !strings.HasPrefix(metrics.Path, "/") {
		v.addError("metrics.path", "must start with /")
	}
}

// validateTracing validates the tracing section.
func (v *Validator) validateTracing(tracing *TracingConfig) {
	if !tracing.Enabled {
		return
	}
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		v.addError("tracing.sampleRate", "must be between 0 and 1")
	}
	if strings.Contains(tracing.OTLPEndpoint, "://") {
		v.addError("tracing.otlpEndpoint", "must be host:port without a scheme")
	}
}
