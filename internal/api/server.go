// Package api provides the REST management API for the network stack.
// It exposes endpoints for health checks, statistics, ARP/socket
// introspection, and network configuration via a Gin-based HTTP server.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anemos-os/netstack/internal/api/handlers"
	"github.com/anemos-os/netstack/internal/api/middleware"
	"github.com/anemos-os/netstack/internal/config"
	"github.com/anemos-os/netstack/internal/metrics"
	"github.com/anemos-os/netstack/internal/netctx"
	"github.com/anemos-os/netstack/internal/store"
)

// Server is the management REST API server.
//
// Security note: do not expose the API to untrusted networks without
// authentication.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
	handler    *handlers.Handler
}

// New builds the management API server. db and m may be nil (no
// persistence/metrics endpoints will be disabled gracefully); the live
// stack context is attached later via SetNetwork once it finishes
// wiring up. configPath is the file POST /config/reload re-reads from.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Registry, db *store.DB, configPath string) *Server {
	if cfg == nil {
		panic("api.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cfg, logger, m, db, configPath)
	RegisterRoutes(engine, h, cfg)
	mountUI(engine, logger)

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: engine, httpServer: httpServer, handler: h}
}

// SetNetwork attaches the live stack context, once wired up, so
// handlers can serve ARP/socket/stats introspection.
func (s *Server) SetNetwork(n *netctx.Context) {
	s.handler.SetNetwork(n)
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
