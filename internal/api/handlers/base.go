// Package handlers implements the REST API endpoint handlers for the
// network stack's management API.
//
// @title Netstack Management API
// @version 1.0
// @description REST API for inspecting and configuring a running netstack instance: ARP cache, socket table, static routes, and durable network configuration.
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/anemos-os/netstack/internal/config"
	"github.com/anemos-os/netstack/internal/metrics"
	"github.com/anemos-os/netstack/internal/netctx"
	"github.com/anemos-os/netstack/internal/store"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	logger     *slog.Logger
	startTime  time.Time
	metrics    *metrics.Registry
	db         *store.DB
	configPath string

	mu  sync.RWMutex
	cfg *config.Config
	net *netctx.Context
}

// New creates a new Handler. net may be nil until SetNetwork is called
// (the API can start before the stack finishes wiring up).
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Registry, db *store.DB, configPath string) *Handler {
	return &Handler{
		cfg:        cfg,
		logger:     logger,
		startTime:  time.Now(),
		metrics:    m,
		db:         db,
		configPath: configPath,
	}
}

// SetNetwork installs the live stack context for runtime access.
func (h *Handler) SetNetwork(n *netctx.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.net = n
}

// network returns the current stack context, or nil if not yet set.
func (h *Handler) network() *netctx.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.net
}

// config returns the current configuration snapshot.
func (h *Handler) config() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// setConfig swaps in a freshly reloaded configuration.
func (h *Handler) setConfig(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}
