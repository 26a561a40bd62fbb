// Package api provides the HTTP API server of an rtconfigd target.
// The rtconfig CLI talks to it through the syscfg client: sessions are
// opened with basic auth, then system and hardware resources are read and
// changed through the session.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/concave-dev/rtconfig/internal/api/handlers"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/netutil"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
)

// Represents the rtconfigd API server
type Server struct {
	device     *target.Device
	discovery  handlers.Discovery
	sessions   *SessionTable
	metrics    *metrics
	router     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	bindAddr   string
	bindPort   int
}

// NewServer creates a server and builds its router. Sessions are dropped
// whenever the device reboots.
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API config: %w", err)
	}

	// Set Gin to release mode unless a test already chose a mode
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		device:    config.Device,
		discovery: config.Discovery,
		sessions:  NewSessionTable(config.SessionIdleTimeout),
		bindAddr:  config.BindAddr,
		bindPort:  config.BindPort,
	}
	s.metrics = newMetrics(config.Registry, s.sessions, s.device)

	s.device.OnReboot(func() {
		if n := s.sessions.Clear(); n > 0 {
			logging.Info("Dropped %d sessions for reboot", n)
		}
	})

	// Configure Gin logging only if not already configured by CLI tools
	if !logging.IsConfiguredByCLI() {
		gin.DefaultWriter = logging.NewLevelWriter("DEBUG", "gin")
		gin.DefaultErrorWriter = logging.NewLevelWriter("ERROR", "gin")
	}

	router := gin.New()
	router.Use(s.loggingMiddleware())
	router.Use(s.corsMiddleware())
	router.Use(s.metrics.middleware())
	router.Use(gin.Recovery())
	s.setupRoutes(router)
	s.router = router

	return s, nil
}

// NewServerWithListener creates a server that serves on an already bound
// listener, so the port cannot be lost between choosing and serving it.
func NewServerWithListener(config *Config, listener net.Listener) (*Server, error) {
	s, err := NewServer(config)
	if err != nil {
		return nil, err
	}
	port, err := netutil.ListenerPort(listener)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	s.bindPort = port
	return s, nil
}

// Handler returns the router, for serving through httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session table.
func (s *Server) Sessions() *SessionTable {
	return s.sessions
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.bindPort
}

// Start binds the listener if needed and serves in the background.
func (s *Server) Start() error {
	if s.listener == nil {
		listener, err := netutil.BindTCP(s.bindAddr, s.bindPort)
		if err != nil {
			return fmt.Errorf("failed to bind API server: %w", err)
		}
		s.listener = listener
		if port, err := netutil.ListenerPort(listener); err == nil {
			s.bindPort = port
		}
	}

	logging.Info("Starting HTTP API server on %s:%d", s.bindAddr, s.bindPort)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Image and firmware uploads can be large
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server failed: %v", err)
		}
	}()

	logging.Success("HTTP API server started successfully")
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down HTTP API server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
