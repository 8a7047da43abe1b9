// Package realtime implements the broadcast engine: connection lifecycle,
// presence, room routing, authentication gating, and the WebSocket server
// that ties them together.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmartens/docpulse/internal/config"
	"github.com/jmartens/docpulse/internal/domain"
	"github.com/jmartens/docpulse/internal/metrics"
)

// Server hosts the WebSocket endpoint and owns the hub. One Server is meant
// to exist per process; the Supervisor enforces that.
type Server struct {
	echo     *echo.Echo
	hub      *Hub
	auth     *Authenticator
	config   *config.Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	started bool
}

func NewServer(cfg *config.Config, provider domain.IdentityProvider, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.CORSOrigin},
	}))

	srv := &Server{
		echo:   e,
		hub:    NewHub(clock, cfg.MaxClients),
		auth:   NewAuthenticator(provider, cfg.RequireAuth),
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(cfg.CORSOrigin),
		},
	}

	e.GET("/ws", srv.handleWebSocket)
	e.GET("/healthz", srv.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return srv
}

// Hub exposes the running hub to the hook-bridge layer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves until Shutdown. A second call returns
// nil immediately; the instance keeps running with its original
// configuration. Returns domain.ErrServerDisabled when the transport is
// disabled.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.config.Disabled {
		s.mu.Unlock()
		return domain.ErrServerDisabled
	}
	if s.started {
		s.mu.Unlock()
		slog.Warn("Realtime server already started, ignoring")
		return nil
	}
	s.started = true
	s.mu.Unlock()

	slog.Info("Realtime server starting", "port", s.config.Port)
	return s.echo.Start(":" + s.config.Port)
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if addr := s.echo.ListenerAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.hub.Stop()
	return err
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	token := bearerToken(c.Request())

	identity, err := s.auth.Authenticate(c.Request().Context(), token)
	if err != nil {
		reason := "invalid_credential"
		if errors.Is(err, domain.ErrMissingCredential) {
			reason = "missing_credential"
		}
		metrics.AuthRejectionsTotal.WithLabelValues(reason).Inc()
		slog.Warn("Connection refused", "reason", err, "remote_addr", c.Request().RemoteAddr)
		return c.String(http.StatusUnauthorized, err.Error())
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade writes its own error response
		return nil
	}

	if err := s.hub.Serve(conn, identity); err != nil {
		slog.Warn("Failed to register connection", "error", err)
	}
	return nil
}

// bearerToken extracts the credential from the Authorization header or the
// token query parameter.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

// newCheckOrigin builds the upgrader origin check from the configured CORS
// origin. Empty origins (non-browser clients) are always allowed.
func newCheckOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed == "*" || origin == allowed {
			return true
		}
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}
