// Package server tracks the HTTP listeners serving the invoice gateway. At
// most one listener exists per port; lifecycle calls are serialised so that
// concurrent start, stop and restart requests observe a consistent registry.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"requestinvoice/internal/models"
)

const defaultShutdownTimeout = 5 * time.Second

// Options configures every listener the manager creates.
type Options struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// TLS is served when both files are set.
	TLSCertFile string
	TLSKeyFile  string

	// MaxConnections caps concurrently open connections; zero means no cap.
	MaxConnections int

	// AcceptRate limits new connections per second; zero means unlimited.
	AcceptRate  float64
	AcceptBurst int
}

// OptionsFromConfig builds listener options from the server config.
func OptionsFromConfig(cfg models.ServerConfig) Options {
	opts := Options{
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxConnections:  cfg.MaxConnections,
		AcceptRate:      cfg.AcceptRate,
		AcceptBurst:     cfg.AcceptBurst,
	}
	if cfg.TLSEnabled {
		opts.TLSCertFile = cfg.TLSCertFile
		opts.TLSKeyFile = cfg.TLSKeyFile
	}
	return opts
}

type listener struct {
	address string
	port    int
	ln      net.Listener
	srv     *http.Server
	done    chan struct{}
}

// Manager owns the registry of running listeners.
type Manager struct {
	handler http.Handler
	opts    Options

	mu        sync.Mutex
	listeners map[int]*listener
}

// NewManager creates a manager whose listeners all serve handler.
func NewManager(handler http.Handler, opts Options) *Manager {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Manager{
		handler:   handler,
		opts:      opts,
		listeners: make(map[int]*listener),
	}
}

// Start binds address:port and begins serving. The bind happens before Start
// returns, so a nil error means the port is accepting connections.
func (m *Manager) Start(address string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listeners[port]; ok {
		return fmt.Errorf("%w on port %d", ErrAlreadyRunning, port)
	}

	l, err := m.listen(address, port)
	if err != nil {
		return err
	}
	m.listeners[port] = l
	return nil
}

// Stop shuts down the listener on port and releases the socket before
// returning.
func (m *Manager) Stop(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listeners[port]
	if !ok {
		return fmt.Errorf("%w on port %d", ErrNotRunning, port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer cancel()

	delete(m.listeners, port)
	return m.shutdown(ctx, l)
}

// Restart stops the listener on port and starts a fresh one on
// address:port. A vacant port is an error and nothing is started. If the new
// bind fails the port is left vacant.
func (m *Manager) Restart(address string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listeners[port]
	if !ok {
		return fmt.Errorf("%w on port %d", ErrNotRunning, port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer cancel()

	delete(m.listeners, port)
	if err := m.shutdown(ctx, l); err != nil {
		slog.Warn("Listener did not shut down cleanly", "port", port, "error", err)
	}

	next, err := m.listen(address, port)
	if err != nil {
		return err
	}
	m.listeners[port] = next
	return nil
}

// Status reports whether a listener is registered on port.
func (m *Manager) Status(port int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.listeners[port]
	return ok
}

// Addr returns the bound address of the listener registered on port.
func (m *Manager) Addr(port int) (net.Addr, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listeners[port]
	if !ok {
		return nil, false
	}
	return l.ln.Addr(), true
}

// StopAll shuts down every listener. ctx bounds the whole operation.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for port, l := range m.listeners {
		delete(m.listeners, port)
		if err := m.shutdown(ctx, l); err != nil {
			errs = append(errs, fmt.Errorf("port %d: %w", port, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) listen(address string, port int) (*listener, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))

	var tlsConfig *tls.Config
	if m.opts.TLSCertFile != "" && m.opts.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.opts.TLSCertFile, m.opts.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Address: address, Port: port, Err: err}
	}

	var serving net.Listener = ln
	if m.opts.MaxConnections > 0 {
		serving = netutil.LimitListener(serving, m.opts.MaxConnections)
	}
	if m.opts.AcceptRate > 0 {
		serving = newThrottledListener(serving, m.opts.AcceptRate, m.opts.AcceptBurst)
	}

	srv := &http.Server{
		Handler:      m.handler,
		ReadTimeout:  m.opts.ReadTimeout,
		WriteTimeout: m.opts.WriteTimeout,
		IdleTimeout:  m.opts.IdleTimeout,
		TLSConfig:    tlsConfig,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	l := &listener{
		address: address,
		port:    port,
		ln:      ln,
		srv:     srv,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(l.done)

		var err error
		if tlsConfig != nil {
			err = srv.ServeTLS(serving, "", "")
		} else {
			err = srv.Serve(serving)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Invoice server stopped unexpectedly", "addr", addr, "error", err)
		}
	}()

	slog.Info("Invoice server listening",
		"addr", ln.Addr().String(),
		"tls", tlsConfig != nil,
	)
	return l, nil
}

// shutdown drains l within ctx and then drops whatever is still in flight.
// A forced close still counts as stopped; only a failure to close is
// returned.
func (m *Manager) shutdown(ctx context.Context, l *listener) error {
	addr := l.ln.Addr().String()

	var err error
	if shutdownErr := l.srv.Shutdown(ctx); shutdownErr != nil {
		slog.Warn("Invoice server did not drain in time, closing remaining connections",
			"addr", addr,
			"error", shutdownErr,
		)
		if closeErr := l.srv.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = closeErr
		}
	}
	<-l.done

	slog.Info("Invoice server stopped", "addr", addr)
	return err
}
