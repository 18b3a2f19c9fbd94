package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/whallera/whallera/internal/logging"
	"github.com/whallera/whallera/internal/transport"
)

// Defaults for Config fields left zero
const (
	DefaultListen        = ":8765"
	DefaultPath          = "/mp1"
	DefaultInstance      = "whallera"
	DefaultDeviceTimeout = time.Second

	// shutdownTimeout bounds Shutdown when the caller's ctx has no deadline
	shutdownTimeout = 10 * time.Second
)

// Config holds the bridge configuration
type Config struct {
	Listen string // host:port to listen on
	Path   string // WebSocket endpoint path

	// DeviceTimeout is how long to wait for the device to answer a request
	DeviceTimeout time.Duration

	// CommandsPerSecond limits each session's request rate; 0 disables it.
	// Burst is the token bucket size.
	CommandsPerSecond float64
	Burst             int

	// Advertise publishes the bridge via mDNS under Instance
	Advertise bool
	Instance  string
}

func (c Config) withDefaults() Config {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.DeviceTimeout <= 0 {
		c.DeviceTimeout = DefaultDeviceTimeout
	}
	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if c.CommandsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Server relays WebSocket sessions to a single device
type Server struct {
	config   Config
	device   transport.Transport
	upgrader websocket.Upgrader
	registry *prometheus.Registry
	metrics  *Metrics

	httpServer *http.Server
	listener   net.Listener
	advertiser *advertiser

	// ctx is cancelled by Shutdown to stop in-flight sessions
	ctx    context.Context
	cancel context.CancelFunc

	wg     sync.WaitGroup
	mu     sync.Mutex
	busy   bool
	active *websocket.Conn
}

// New creates a bridge in front of device. The server does not own device;
// the caller closes it after Shutdown.
func New(config Config, device transport.Transport) *Server {
	config = config.withDefaults()

	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:   config,
		device:   device,
		registry: registry,
		metrics:  NewMetrics(registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge is not a browser endpoint
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the bridge's HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleSession)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", MetricsHandler(s.registry))
	return mux
}

// Metrics exposes the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens on the configured address and blocks until ctx is cancelled,
// SIGINT/SIGTERM arrives, or serving fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Starting whallera bridge",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
		zap.String("device", s.device.String()),
		zap.Duration("device_timeout", s.config.DeviceTimeout),
	)

	if s.config.Advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		adv, err := advertise(s.config.Instance, port, s.config.Path, s.device.String())
		if err != nil {
			// The bridge is still reachable by address
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
		s.advertiser = adv
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping bridge...")
		return s.Shutdown(context.Background())
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listening address once Start has bound it
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ActiveSessions() > 0 {
		_, _ = fmt.Fprintln(w, "ok busy")
		return
	}
	_, _ = fmt.Fprintln(w, "ok idle")
}

// handleSession upgrades the connection and relays it, refusing with 409
// while another session owns the device.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.reserve() {
		s.metrics.BusyRefusals.Inc()
		logging.Info("Refusing session, device busy", zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "device busy", http.StatusConflict)
		return
	}

	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release(nil)
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	defer s.release(conn)

	// Shutdown may have swept s.active before this connection was set
	if !s.activate(conn) {
		return
	}

	logging.LogConnection(r.RemoteAddr, "session_opened")
	s.metrics.Sessions.Inc()
	s.metrics.ActiveSessions.Set(1)

	newSession(conn, s.device, &s.config, s.metrics).serve(s.ctx)
}

// reserve claims the device before the upgrade so a racing client is
// refused. A successful reserve is counted in s.wg; the caller must call
// s.wg.Done.
func (s *Server) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.ctx.Err() != nil {
		return false
	}
	s.busy = true
	s.wg.Add(1)
	return true
}

// activate records conn as the session Shutdown must close. It reports
// false if shutdown has already begun.
func (s *Server) activate(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conn
	return s.ctx.Err() == nil
}

func (s *Server) release(conn *websocket.Conn) {
	if conn != nil {
		_ = conn.Close()
		logging.LogConnection(conn.RemoteAddr().String(), "session_closed")
	}
	s.mu.Lock()
	s.busy = false
	s.active = nil
	s.mu.Unlock()
	s.metrics.ActiveSessions.Set(0)
}

// ActiveSessions returns 1 while a client owns the device
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 1
	}
	return 0
}

// Shutdown stops accepting sessions, closes the active one, and waits for
// its relay to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	s.advertiser.Shutdown()
	s.cancel()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	// Hijacked WebSocket connections are not closed by http.Server.Shutdown
	s.mu.Lock()
	if s.active != nil {
		_ = s.active.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All sessions closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(shutdownTimeout):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()
	return nil
}
