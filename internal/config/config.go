// Package config provides configuration management for the configurable
// HTTP proxy. Configuration is assembled from defaults, an optional YAML
// file with environment variable substitution, command-line flags, and
// environment variables.
package config

import (
	"time"
)

// Default listener addresses and ports.
const (
	// DefaultPublicPort is the port the public proxy listener binds to.
	DefaultPublicPort = 8000

	// DefaultAPIPort is the port the admin API listener binds to.
	DefaultAPIPort = 8001

	// DefaultMetricsPort is the port the metrics endpoint binds to.
	DefaultMetricsPort = 8002

	// DefaultAPIIP is the address the admin API listener binds to.
	// The admin API is loopback-only unless configured otherwise.
	DefaultAPIIP = "127.0.0.1"

	// DefaultMetricsPath is the HTTP path the metrics handler serves.
	DefaultMetricsPath = "/metrics"
)

// Default timeouts.
const (
	// DefaultReadHeaderTimeout bounds how long a client may take to send
	// request headers. Read and write timeouts stay unset so streaming
	// responses and WebSocket connections are never cut off.
	DefaultReadHeaderTimeout = 5 * time.Second

	// DefaultIdleTimeout bounds how long an idle keep-alive connection
	// is held open.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// DefaultClientMaxBodySize caps request bodies on the public listener.
// Zero disables the limit.
const DefaultClientMaxBodySize = Size(256 * 1024 * 1024)

// AuthTokenEnvVar is the environment variable consulted for the admin
// API token when none is configured explicitly.
const AuthTokenEnvVar = "CONFIGPROXY_AUTH_TOKEN"

// Config is the root configuration for the proxy.
type Config struct {
	// Public configures the public proxy listener.
	Public PublicConfig `yaml:"public"`

	// API configures the admin API listener.
	API APIConfig `yaml:"api"`

	// Proxy configures request forwarding behavior.
	Proxy ProxyConfig `yaml:"proxy"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `yaml:"tracing"`
}

// PublicConfig configures the public proxy listener.
type PublicConfig struct {
	// IP is the address to bind. Empty means all interfaces.
	IP string `yaml:"ip"`

	// Port is the port to bind.
	Port int `yaml:"port"`

	// TLS enables HTTPS on the public listener when set.
	TLS *TLSConfig `yaml:"tls,omitempty"`

	// Timeouts overrides the default listener timeouts.
	Timeouts *Timeouts `yaml:"timeouts,omitempty"`
}

// APIConfig configures the admin API listener.
type APIConfig struct {
	// IP is the address to bind. Empty means all interfaces.
	IP string `yaml:"ip"`

	// Port is the port to bind.
	Port int `yaml:"port"`

	// AuthToken is the shared secret required on every admin API call.
	// When empty, the CONFIGPROXY_AUTH_TOKEN environment variable is
	// consulted at load time.
	AuthToken string `yaml:"authToken,omitempty"`

	// TLS enables HTTPS on the admin listener when set.
	TLS *TLSConfig `yaml:"tls,omitempty"`

	// Timeouts overrides the default listener timeouts.
	Timeouts *Timeouts `yaml:"timeouts,omitempty"`
}

// TLSConfig holds certificate paths for a listener.
type TLSConfig struct {
	// CertFile is the path to the PEM certificate.
	CertFile string `yaml:"certFile"`

	// KeyFile is the path to the PEM private key.
	KeyFile string `yaml:"keyFile"`
}

// Enabled reports whether TLS is configured.
func (t *TLSConfig) Enabled() bool {
	return t != nil && t.CertFile != "" && t.KeyFile != ""
}

// Timeouts contains listener timeout configuration. Read and write
// timeouts are intentionally absent: the proxy carries long-lived
// streaming and WebSocket traffic.
type Timeouts struct {
	// ReadHeaderTimeout is the maximum duration for reading request headers.
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty"`

	// IdleTimeout is the maximum duration to wait for the next request
	// when keep-alives are enabled.
	IdleTimeout Duration `yaml:"idleTimeout,omitempty"`
}

// GetEffectiveReadHeaderTimeout returns the effective read header timeout.
func (t *Timeouts) GetEffectiveReadHeaderTimeout() time.Duration {
	if t == nil || t.ReadHeaderTimeout == 0 {
		return DefaultReadHeaderTimeout
	}
	return t.ReadHeaderTimeout.Duration()
}

// GetEffectiveIdleTimeout returns the effective idle timeout.
func (t *Timeouts) GetEffectiveIdleTimeout() time.Duration {
	if t == nil || t.IdleTimeout == 0 {
		return DefaultIdleTimeout
	}
	return t.IdleTimeout.Duration()
}

// ProxyConfig configures request forwarding behavior.
type ProxyConfig struct {
	// DefaultTarget is the fallback backend used when no registered
	// spec matches a request path. Empty disables the fallback.
	DefaultTarget string `yaml:"defaultTarget,omitempty"`

	// ErrorTarget is a backend that renders proxy error pages. On a
	// proxy error with status code NNN, GET <errorTarget>/NNN is
	// issued with the original path in the url query parameter and
	// its response body is relayed to the client.
	ErrorTarget string `yaml:"errorTarget,omitempty"`

	// ErrorPath is a local directory containing NNN.html error pages
	// with error.html as fallback. Ignored when ErrorTarget is set.
	ErrorPath string `yaml:"errorPath,omitempty"`

	// ClientMaxBodySize caps request bodies on the public listener.
	// Accepts byte suffixes (k/M/G). Zero disables the limit.
	ClientMaxBodySize Size `yaml:"clientMaxBodySize,omitempty"`

	// FlushInterval controls response flushing while streaming from
	// the backend. Zero uses the engine default of flushing
	// immediately.
	FlushInterval Duration `yaml:"flushInterval,omitempty"`

	// TrustedProxies lists CIDRs (or single IPs) of upstream load
	// balancers whose X-Forwarded-For headers may be trusted when
	// resolving client IPs for access logs. Empty means only the
	// direct peer address is used.
	TrustedProxies []string `yaml:"trustedProxies,omitempty"`

	// Routes seeds the routing table at startup, mapping path-prefix
	// specs to backend targets. The table remains runtime-mutable
	// through the admin API; seeded entries are not persisted back.
	Routes map[string]string `yaml:"routes,omitempty"`

	// CircuitBreaker protects backends from cascading failures.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the upstream circuit breaker.
type CircuitBreakerConfig struct {
	// Enabled turns the circuit breaker on.
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed through while the
	// breaker is half-open.
	MaxRequests uint32 `yaml:"maxRequests,omitempty"`

	// Interval is the cyclic period for clearing counts while closed.
	Interval Duration `yaml:"interval,omitempty"`

	// Timeout is how long the breaker stays open before probing.
	Timeout Duration `yaml:"timeout,omitempty"`

	// MinRequests is the minimum number of requests before the
	// failure ratio is evaluated.
	MinRequests uint32 `yaml:"minRequests,omitempty"`

	// FailureRatio is the failure ratio at which the breaker trips.
	FailureRatio float64 `yaml:"failureRatio,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level to emit (debug, info, warn, error, fatal).
	Level string `yaml:"level"`

	// Format selects the encoder (json or console).
	Format string `yaml:"format"`

	// Output selects the destination (stdout or stderr).
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics listener on.
	Enabled bool `yaml:"enabled"`

	// IP is the address to bind. Empty means all interfaces.
	IP string `yaml:"ip,omitempty"`

	// Port is the port to bind.
	Port int `yaml:"port"`

	// Path is the HTTP path the metrics handler serves.
	Path string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"serviceName,omitempty"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint.
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`

	// SampleRate is the trace sampling rate in [0, 1].
	SampleRate float64 `yaml:"sampleRate,omitempty"`

	// Retry overrides the OTLP exporter retry policy.
	Retry *TracingRetryConfig `yaml:"retry,omitempty"`
}

// TracingRetryConfig configures OTLP exporter retries.
type TracingRetryConfig struct {
	// Enabled turns exporter retries on.
	Enabled bool `yaml:"enabled"`

	// InitialInterval is the initial backoff interval.
	InitialInterval Duration `yaml:"initialInterval,omitempty"`

	// MaxInterval is the maximum backoff interval.
	MaxInterval Duration `yaml:"maxInterval,omitempty"`

	// MaxElapsedTime is the maximum total time for retries.
	MaxElapsedTime Duration `yaml:"maxElapsedTime,omitempty"`
}

// DefaultConfig returns the configuration used when no file and no
// flags are provided.
func DefaultConfig() *Config {
	return &Config{
		Public: PublicConfig{
			IP:   "",
			Port: DefaultPublicPort,
		},
		API: APIConfig{
			IP:   DefaultAPIIP,
			Port: DefaultAPIPort,
		},
		Proxy: ProxyConfig{
			ClientMaxBodySize: DefaultClientMaxBodySize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    DefaultMetricsPort,
			Path:    DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "gochp",
			SampleRate:  1.0,
		},
	}
}
