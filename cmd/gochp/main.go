// Package main is the entry point for the configurable HTTP proxy.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags. The set map records which flags
// were passed explicitly so they can override file values.
type cliFlags struct {
	configPath        string
	ip                string
	port              int
	apiIP             string
	apiPort           int
	defaultTarget     string
	errorTarget       string
	errorPath         string
	sslCert           string
	sslKey            string
	apiSSLCert        string
	apiSSLKey         string
	clientMaxBodySize string
	metricsPort       int
	logLevel          string
	logFormat         string
	showVersion       bool

	set map[string]bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)

	cfg := loadAndValidateConfig(flags, logger)

	logger = rebuildLogger(cfg, logger)
	defer func() { _ = logger.Sync() }()

	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags. The flag surface mirrors the
// classic configurable-http-proxy options so existing launch scripts
// keep working.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GOCHP_CONFIG_PATH", ""),
		"Path to optional YAML configuration file")
	ip := flag.String("ip", "",
		"Public proxy listener address (empty binds all interfaces)")
	port := flag.Int("port", config.DefaultPublicPort,
		"Public proxy listener port")
	apiIP := flag.String("api-ip", config.DefaultAPIIP,
		"Admin API listener address")
	apiPort := flag.Int("api-port", config.DefaultAPIPort,
		"Admin API listener port")
	defaultTarget := flag.String("default-target", "",
		"Backend for requests no route matches")
	errorTarget := flag.String("error-target", "",
		"Backend that renders proxy error pages")
	errorPath := flag.String("error-path", "",
		"Directory with NNN.html error pages")
	sslCert := flag.String("ssl-cert", "",
		"PEM certificate for the public listener")
	sslKey := flag.String("ssl-key", "",
		"PEM private key for the public listener")
	apiSSLCert := flag.String("api-ssl-cert", "",
		"PEM certificate for the admin API listener")
	apiSSLKey := flag.String("api-ssl-key", "",
		"PEM private key for the admin API listener")
	clientMaxBodySize := flag.String("client-max-body-size", "",
		"Request body cap on the public listener, accepts k/M/G suffixes (0 disables)")
	metricsPort := flag.Int("metrics-port", config.DefaultMetricsPort,
		"Metrics listener port (0 disables)")
	logLevel := flag.String("log-level", getEnvOrDefault("GOCHP_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GOCHP_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	return cliFlags{
		configPath:        *configPath,
		ip:                *ip,
		port:              *port,
		apiIP:             *apiIP,
		apiPort:           *apiPort,
		defaultTarget:     *defaultTarget,
		errorTarget:       *errorTarget,
		errorPath:         *errorPath,
		sslCert:           *sslCert,
		sslKey:            *sslKey,
		apiSSLCert:        *apiSSLCert,
		apiSSLKey:         *apiSSLKey,
		clientMaxBodySize: *clientMaxBodySize,
		metricsPort:       *metricsPort,
		logLevel:          *logLevel,
		logFormat:         *logFormat,
		showVersion:       *showVersion,
		set:               set,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("gochp version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the bootstrap logger from flags. It is
// replaced once the full logging configuration is known.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// rebuildLogger replaces the bootstrap logger with one built from the
// resolved logging configuration.
func rebuildLogger(cfg *config.Config, bootstrap observability.Logger) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		bootstrap.Fatal("failed to initialize logger", observability.Error(err))
	}

	_ = bootstrap.Sync()
	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads the configuration and applies flag
// overrides. Flags win over file values, which win over environment
// defaults.
func loadAndValidateConfig(flags cliFlags, logger observability.Logger) *config.Config {
	logger.Info("starting gochp",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", observability.Error(err))
		}
		cfg = loaded
	} else {
		config.ApplyEnvDefaults(cfg)
	}

	if err := applyFlagOverrides(cfg, flags); err != nil {
		logger.Fatal("invalid flag value", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	if cfg.API.AuthToken == "" {
		logger.Warn("no admin token configured, every admin API request will be rejected",
			observability.String("env", config.AuthTokenEnvVar),
		)
	}

	logger.Info("configuration loaded",
		observability.String("public", fmt.Sprintf("%s:%d", cfg.Public.IP, cfg.Public.Port)),
		observability.String("api", fmt.Sprintf("%s:%d", cfg.API.IP, cfg.API.Port)),
		observability.Int("seed_routes", len(cfg.Proxy.Routes)),
		observability.Bool("default_target", cfg.Proxy.DefaultTarget != ""),
		observability.Bool("metrics", cfg.Metrics.Enabled),
	)

	return cfg
}

// applyFlagOverrides applies explicitly passed flags on top of the
// loaded configuration.
func applyFlagOverrides(cfg *config.Config, flags cliFlags) error {
	if flags.set["ip"] {
		cfg.Public.IP = flags.ip
	}
	if flags.set["port"] {
		cfg.Public.Port = flags.port
	}
	if flags.set["api-ip"] {
		cfg.API.IP = flags.apiIP
	}
	if flags.set["api-port"] {
		cfg.API.Port = flags.apiPort
	}
	if flags.set["default-target"] {
		cfg.Proxy.DefaultTarget = flags.defaultTarget
	}
	if flags.set["error-target"] {
		cfg.Proxy.ErrorTarget = flags.errorTarget
	}
	if flags.set["error-path"] {
		cfg.Proxy.ErrorPath = flags.errorPath
	}
	if flags.set["ssl-cert"] || flags.set["ssl-key"] {
		cfg.Public.TLS = &config.TLSConfig{
			CertFile: flags.sslCert,
			KeyFile:  flags.sslKey,
		}
	}
	if flags.set["api-ssl-cert"] || flags.set["api-ssl-key"] {
		cfg.API.TLS = &config.TLSConfig{
			CertFile: flags.apiSSLCert,
			KeyFile:  flags.apiSSLKey,
		}
	}
	if flags.set["client-max-body-size"] {
		size, err := config.ParseSize(flags.clientMaxBodySize)
		if err != nil {
			return fmt.Errorf("invalid client-max-body-size: %w", err)
		}
		cfg.Proxy.ClientMaxBodySize = size
	}
	if flags.set["metrics-port"] {
		if flags.metricsPort == 0 {
			cfg.Metrics.Enabled = false
		} else {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Port = flags.metricsPort
		}
	}
	if flags.set["log-level"] {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.set["log-format"] {
		cfg.Logging.Format = flags.logFormat
	}

	return nil
}
