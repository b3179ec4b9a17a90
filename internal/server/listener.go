// Package server owns the HTTP listeners: the public proxy listener,
// the admin API listener, and the optional ops listener for metrics
// and health endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/gochp/internal/config"
	"github.com/vyrodovalexey/gochp/internal/observability"
)

// defaultMaxHeaderBytes caps request header size on every listener.
const defaultMaxHeaderBytes = 1 << 20 // 1MB

// ListenerConfig describes one TCP listener.
type ListenerConfig struct {
	// Name identifies the listener in logs.
	Name string

	// IP is the address to bind. Empty means all interfaces.
	IP string

	// Port is the port to bind. Zero picks an ephemeral port.
	Port int

	// TLS enables HTTPS when it carries both certificate paths.
	TLS *config.TLSConfig

	// ReadHeaderTimeout bounds how long a client may take to send
	// headers. Zero applies the config default.
	ReadHeaderTimeout time.Duration

	// IdleTimeout bounds keep-alive idle time. Zero applies the config
	// default.
	IdleTimeout time.Duration
}

// Listener serves an http.Handler on one address. Read and write
// timeouts are deliberately absent: the proxy carries long-lived
// streaming and WebSocket traffic that must not be cut off mid-flight.
type Listener struct {
	cfg     ListenerConfig
	server  *http.Server
	handler http.Handler
	logger  observability.Logger
	ln      net.Listener
	running atomic.Bool
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener for the given handler.
func NewListener(cfg ListenerConfig, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		cfg:     cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.cfg.Name
}

// Address returns the configured bind address.
func (l *Listener) Address() string {
	bind := l.cfg.IP
	if bind == "" {
		bind = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", bind, l.cfg.Port)
}

// BoundAddr returns the address actually bound, which differs from
// Address when port zero was requested. Only valid after Start.
func (l *Listener) BoundAddr() string {
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Start binds the address and begins serving in a background
// goroutine.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener %s is already running", l.cfg.Name)
	}

	addr := l.Address()

	readHeaderTimeout := l.cfg.ReadHeaderTimeout
	if readHeaderTimeout == 0 {
		readHeaderTimeout = config.DefaultReadHeaderTimeout
	}
	idleTimeout := l.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = config.DefaultIdleTimeout
	}

	l.server = &http.Server{
		Addr:              addr,
		Handler:           l.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	l.ln = ln

	l.running.Store(true)

	l.logger.Info("listener started",
		observability.String("name", l.cfg.Name),
		observability.String("address", ln.Addr().String()),
		observability.Bool("tls", l.cfg.TLS.Enabled()),
	)

	go l.serve(ln)

	return nil
}

// serve runs the accept loop until the server shuts down.
func (l *Listener) serve(ln net.Listener) {
	var err error
	if l.cfg.TLS.Enabled() {
		err = l.server.ServeTLS(ln, l.cfg.TLS.CertFile, l.cfg.TLS.KeyFile)
	} else {
		err = l.server.Serve(ln)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("listener error",
			observability.String("name", l.cfg.Name),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop shuts the listener down gracefully, falling back to a hard
// close when the context expires first.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.running.Load() {
		return nil
	}

	l.logger.Info("stopping listener",
		observability.String("name", l.cfg.Name),
	)

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}

	l.running.Store(false)

	l.logger.Info("listener stopped",
		observability.String("name", l.cfg.Name),
	)

	return nil
}

// IsRunning returns true if the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
