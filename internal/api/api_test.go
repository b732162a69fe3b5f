// Package api_test provides behavior tests for the API package.
package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anemos-os/netstack/internal/api"
	"github.com/anemos-os/netstack/internal/api/models"
	"github.com/anemos-os/netstack/internal/config"
	"github.com/anemos-os/netstack/internal/store"
)

func createTestConfig() *config.Config {
	return &config.Config{
		Network: config.NetworkConfig{
			LocalIP: "10.0.0.1",
			Netmask: "255.255.255.0",
			Gateway: "10.0.0.254",
		},
		API: config.APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			APIKey:  "",
		},
	}
}

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "netstack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func performRequest(r http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ============================================================================
// Server Creation Tests
// ============================================================================

func TestNew_CreatesServer(t *testing.T) {
	cfg := createTestConfig()

	server := api.New(cfg, nil, nil, nil, "")

	assert.NotNil(t, server)
}

func TestNew_PanicsOnNilConfig(t *testing.T) {
	assert.Panics(t, func() {
		api.New(nil, nil, nil, nil, "")
	})
}

func TestServer_Addr(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 9090

	server := api.New(cfg, nil, nil, nil, "")

	assert.Equal(t, "0.0.0.0:9090", server.Addr())
}

func TestServer_Engine(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	engine := server.Engine()

	assert.NotNil(t, engine)
}

// ============================================================================
// Routes Tests
// ============================================================================

func TestRoutes_HealthEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestRoutes_StatsEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Uptime)
}

func TestRoutes_ConfigEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/config", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ConfigResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", resp.Network.LocalIP)
}

func TestRoutes_ArpEndpoints_WithoutLiveStack(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/arp", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_SocketsEndpoint_WithoutLiveStack(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/sockets", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_RoutesEndpoint_WithoutStore(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/routes", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp []models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp)
}

func TestRoutes_AddAndListRoute_WithStore(t *testing.T) {
	cfg := createTestConfig()
	db := newTestDB(t)
	server := api.New(cfg, nil, nil, db, "")

	body := `{"destination":"192.168.1.0","netmask":"255.255.255.0","gateway":"10.0.0.1"}`
	w := performRequest(server.Engine(), http.MethodPost, "/api/v1/routes", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(server.Engine(), http.MethodGet, "/api/v1/routes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp []models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "192.168.1.0", resp[0].Destination)

	w = performRequest(server.Engine(), http.MethodDelete, "/api/v1/routes/192.168.1.0/255.255.255.0", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ============================================================================
// API Key Protection Tests
// ============================================================================

func TestRoutes_WithAPIKey_ValidKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "secret-key"
	server := api.New(cfg, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Api-Key", "secret-key")
	w := httptest.NewRecorder()

	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_WithAPIKey_InvalidKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "secret-key"
	server := api.New(cfg, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Api-Key", "wrong-key")
	w := httptest.NewRecorder()

	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_WithAPIKey_MissingKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "secret-key"
	server := api.New(cfg, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	// No X-API-Key header
	w := httptest.NewRecorder()

	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_NoAPIKey_NoAuth(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "" // No API key configured
	server := api.New(cfg, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ============================================================================
// Server Lifecycle Tests
// ============================================================================

func TestServer_Shutdown(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.Port = 0 // Let the OS pick a port
	server := api.New(cfg, nil, nil, nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := server.Shutdown(ctx)
	assert.NoError(t, err)
}

// ============================================================================
// Swagger Endpoint Tests
// ============================================================================

func TestRoutes_SwaggerEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/swagger/index.html", "")

	// Swagger UI should be accessible
	assert.Equal(t, http.StatusOK, w.Code)
}

// ============================================================================
// Not Found Tests
// ============================================================================

func TestRoutes_NotFound(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/nonexistent", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ============================================================================
// Method Tests
// ============================================================================

func TestRoutes_PutConfig_WithoutStore(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, nil, nil, nil, "")

	w := performRequest(server.Engine(), http.MethodPut, "/api/v1/config", `{"local_ip":"10.0.0.2","netmask":"255.255.255.0","gateway":"10.0.0.254"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
