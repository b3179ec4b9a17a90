package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validTestConfig returns a configuration that passes validation.
func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.API.AuthToken = "secret"
	return cfg
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      ValidationError
		expected string
	}{
		{
			name:     "with path",
			err:      ValidationError{Path: "api.port", Message: "invalid"},
			expected: "api.port: invalid",
		},
		{
			name:     "without path",
			err:      ValidationError{Message: "configuration is nil"},
			expected: "configuration is nil",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		errs := ValidationErrors{}
		assert.Equal(t, "no validation errors", errs.Error())
		assert.False(t, errs.HasErrors())
	})

	t.Run("single", func(t *testing.T) {
		t.Parallel()
		errs := ValidationErrors{{Path: "api.port", Message: "invalid"}}
		assert.Equal(t, "api.port: invalid", errs.Error())
		assert.True(t, errs.HasErrors())
	})

	t.Run("multiple", func(t *testing.T) {
		t.Parallel()
		errs := ValidationErrors{
			{Path: "api.port", Message: "invalid"},
			{Path: "public.port", Message: "invalid"},
		}
		assert.Contains(t, errs.Error(), "2 validation errors")
		assert.Contains(t, errs.Error(), "api.port")
		assert.Contains(t, errs.Error(), "public.port")
	})
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(validTestConfig())
	assert.NoError(t, err)
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidateConfig_AuthTokenRequired(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.API.AuthToken = ""

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth token is required")
	assert.Contains(t, err.Error(), AuthTokenEnvVar)
}

func TestValidateConfig_Ports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative public port",
			mutate:  func(c *Config) { c.Public.Port = -1 },
			wantErr: "public.port",
		},
		{
			name:    "public port too large",
			mutate:  func(c *Config) { c.Public.Port = 70000 },
			wantErr: "public.port",
		},
		{
			name:    "negative api port",
			mutate:  func(c *Config) { c.API.Port = -1 },
			wantErr: "api.port",
		},
		{
			name:    "negative metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = -1 },
			wantErr: "metrics.port",
		},
		{
			name:   "zero port binds ephemeral",
			mutate: func(c *Config) { c.Public.Port = 0 },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validTestConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_TLS(t *testing.T) {
	t.Parallel()

	t.Run("cert without key", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Public.TLS = &TLSConfig{CertFile: "/etc/tls/cert.pem"}

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "public.tls.keyFile")
	})

	t.Run("key without cert", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.API.TLS = &TLSConfig{KeyFile: "/etc/tls/key.pem"}

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.tls.certFile")
	})

	t.Run("cert and key", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Public.TLS = &TLSConfig{
			CertFile: "/etc/tls/cert.pem",
			KeyFile:  "/etc/tls/key.pem",
		}

		err := ValidateConfig(cfg)
		assert.NoError(t, err)
	})
}

func TestValidateConfig_TargetURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default target",
			mutate: func(c *Config) { c.Proxy.DefaultTarget = "http://localhost:8081" },
		},
		{
			name:   "valid https error target",
			mutate: func(c *Config) { c.Proxy.ErrorTarget = "https://errors.example.com" },
		},
		{
			name:    "default target without scheme",
			mutate:  func(c *Config) { c.Proxy.DefaultTarget = "localhost:8081" },
			wantErr: "proxy.defaultTarget",
		},
		{
			name:    "default target with bad scheme",
			mutate:  func(c *Config) { c.Proxy.DefaultTarget = "ftp://localhost:8081" },
			wantErr: "scheme must be http or https",
		},
		{
			name:    "error target without host",
			mutate:  func(c *Config) { c.Proxy.ErrorTarget = "http://" },
			wantErr: "host is required",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validTestConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_Routes(t *testing.T) {
	t.Parallel()

	t.Run("valid routes", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Proxy.Routes = map[string]string{
			"/":           "http://localhost:8081",
			"/user/alice": "http://localhost:9101",
		}

		err := ValidateConfig(cfg)
		assert.NoError(t, err)
	})

	t.Run("spec without leading slash", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Proxy.Routes = map[string]string{
			"user/alice": "http://localhost:9101",
		}

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "spec must start with /")
	})

	t.Run("invalid target", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Proxy.Routes = map[string]string{
			"/user/alice": "not-a-url",
		}

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "proxy.routes[/user/alice]")
	})
}

func TestValidateConfig_BodySizeAndFlush(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig()
	cfg.Proxy.ClientMaxBodySize = -1
	cfg.Proxy.FlushInterval = -1

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy.clientMaxBodySize")
	assert.Contains(t, err.Error(), "proxy.flushInterval")
}

func TestValidateConfig_CircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("disabled skips validation", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Proxy.CircuitBreaker = CircuitBreakerConfig{
			Enabled:      false,
			FailureRatio: 5.0,
		}

		err := ValidateConfig(cfg)
		assert.NoError(t, err)
	})

	t.Run("failure ratio out of range", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Proxy.CircuitBreaker = CircuitBreakerConfig{
			Enabled:      true,
			FailureRatio: 1.5,
		}

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "proxy.circuitBreaker.failureRatio")
	})
}

func TestValidateConfig_Logging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "invalid format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "invalid output",
			mutate:  func(c *Config) { c.Logging.Output = "/var/log/proxy.log" },
			wantErr: "logging.output",
		},
		{
			name: "empty fields allowed",
			mutate: func(c *Config) {
				c.Logging = LoggingConfig{}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validTestConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_Metrics(t *testing.T) {
	t.Parallel()

	t.Run("path without leading slash", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Metrics.Path = "metrics"

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metrics.path")
	})

	t.Run("disabled skips validation", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Metrics.Enabled = false
		cfg.Metrics.Port = -1
		cfg.Metrics.Path = "metrics"

		err := ValidateConfig(cfg)
		assert.NoError(t, err)
	})
}

func TestValidateConfig_Tracing(t *testing.T) {
	t.Parallel()

	t.Run("sample rate out of range", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Tracing.Enabled = true
		cfg.Tracing.SampleRate = 2.0

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracing.sampleRate")
	})

	t.Run("endpoint with scheme rejected", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Tracing.Enabled = true
		cfg.Tracing.OTLPEndpoint = "http://collector:4317"

		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracing.otlpEndpoint")
	})

	t.Run("plain host port accepted", func(t *testing.T) {
		t.Parallel()

		cfg := validTestConfig()
		cfg.Tracing.Enabled = true
		cfg.Tracing.OTLPEndpoint = "collector:4317"

		err := ValidateConfig(cfg)
		assert.NoError(t, err)
	})
}
