// Package config provides configuration types and loading for the
// configurable HTTP proxy.
//
// This package defines the complete configuration model, YAML loading
// with environment variable substitution, validation, and file
// watching for hot-reload support.
//
// # Features
//
//   - YAML configuration file loading layered over defaults
//   - Environment variable substitution with ${VAR:-default} syntax
//   - CONFIGPROXY_AUTH_TOKEN fallback for the admin token
//   - Configuration validation with detailed error reporting
//   - File watching for configuration hot-reload
//
// # Configuration Loading
//
// Load configuration from a YAML file:
//
//	cfg, err := config.Load("gochp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
// Watch for configuration changes. The callback only receives
// configurations that loaded and validated successfully:
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
//	    // Apply the new configuration.
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := watcher.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package config
