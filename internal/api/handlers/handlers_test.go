// Package handlers_test provides behavior tests for the API handlers package.
package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anemos-os/netstack/internal/api/handlers"
	"github.com/anemos-os/netstack/internal/api/models"
	"github.com/anemos-os/netstack/internal/config"
	"github.com/anemos-os/netstack/internal/driver"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/metrics"
	"github.com/anemos-os/netstack/internal/netctx"
	"github.com/anemos-os/netstack/internal/socket"
	"github.com/anemos-os/netstack/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func createTestHandler(t *testing.T) *handlers.Handler {
	cfg := &config.Config{
		Network: config.NetworkConfig{LocalIP: "10.0.0.1", Netmask: "255.255.255.0", Gateway: "10.0.0.254"},
	}
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return handlers.New(cfg, nil, metrics.New(), db, "")
}

func newLiveContext(t *testing.T) *netctx.Context {
	t.Helper()
	now := func() int64 { return time.Now().UnixMilli() }
	a := driver.NewLoopback(link.HWAddr{1, 1, 1, 1, 1, 1})
	b := driver.NewLoopback(link.HWAddr{2, 2, 2, 2, 2, 2})
	driver.Pair(a, b)

	ctx := netctx.New(netctx.Config{LocalIP: 0x0A000001, Netmask: 0xFFFFFF00, Gateway: 0x0A0000FE, LocalHW: a.HardwareAddr()}, a, now, nil, nil)
	ctx.Arp.StaticSet(0x0A000002, b.HardwareAddr())
	return ctx
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
// Health Endpoint Tests
// ============================================================================

func TestHealth_ReturnsOK(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.GET("/health", h.Health)

	w := performRequest(router, "GET", "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

// ============================================================================
// Stats Endpoint Tests
// ============================================================================

func TestStats_ReturnsServerStats(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.GET("/stats", h.Stats)

	w := performRequest(router, "GET", "/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Uptime)
	assert.Positive(t, resp.CPU.NumCPU)
}

func TestStats_WithLiveStack(t *testing.T) {
	h := createTestHandler(t)
	h.SetNetwork(newLiveContext(t))

	router := gin.New()
	router.GET("/stats", h.Stats)

	w := performRequest(router, "GET", "/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Network.SocketCount)
}

// ============================================================================
// ARP Endpoint Tests
// ============================================================================

func TestListARP_WithoutLiveStack(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.GET("/arp", h.ListARP)

	w := performRequest(router, "GET", "/arp", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListARP_WithLiveStack(t *testing.T) {
	h := createTestHandler(t)
	h.SetNetwork(newLiveContext(t))

	router := gin.New()
	router.GET("/arp", h.ListARP)

	w := performRequest(router, "GET", "/arp", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp []models.ArpEntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "10.0.0.2", resp[0].IP)
}

func TestAddStaticARP_PersistsAndInstallsLive(t *testing.T) {
	h := createTestHandler(t)
	h.SetNetwork(newLiveContext(t))

	router := gin.New()
	router.POST("/arp", h.AddStaticARP)

	w := performRequest(router, "POST", "/arp", `{"ip":"10.0.0.9","hw_addr":"aa:bb:cc:dd:ee:ff"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestAddStaticARP_RejectsInvalidAddress(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.POST("/arp", h.AddStaticARP)

	w := performRequest(router, "POST", "/arp", `{"ip":"not-an-ip","hw_addr":"aa:bb:cc:dd:ee:ff"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveStaticARP_Success(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.DELETE("/arp/:ip", h.RemoveStaticARP)

	w := performRequest(router, "DELETE", "/arp/10.0.0.9", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ============================================================================
// Socket Endpoint Tests
// ============================================================================

func TestListSockets_WithoutLiveStack(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.GET("/sockets", h.ListSockets)

	w := performRequest(router, "GET", "/sockets", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListSockets_WithLiveStack(t *testing.T) {
	h := createTestHandler(t)
	ctx := newLiveContext(t)
	h.SetNetwork(ctx)

	handle, err := ctx.Socket.Socket(socket.Datagram, 0)
	require.NoError(t, err)
	require.NoError(t, ctx.Socket.Bind(handle, 0x0A000001, 5300))

	router := gin.New()
	router.GET("/sockets", h.ListSockets)

	w := performRequest(router, "GET", "/sockets", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp []models.SocketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "datagram", resp[0].Type)
	assert.Equal(t, "10.0.0.1", resp[0].LocalIP)
	assert.NotEmpty(t, resp[0].TraceID)
}

// ============================================================================
// Route Endpoint Tests
// ============================================================================

func TestRoutes_AddListRemove(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.GET("/routes", h.ListRoutes)
	router.POST("/routes", h.AddRoute)
	router.DELETE("/routes/:destination/:netmask", h.RemoveRoute)

	w := performRequest(router, "POST", "/routes", `{"destination":"172.16.0.0","netmask":"255.255.0.0","gateway":"10.0.0.1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, "GET", "/routes", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp []models.RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "172.16.0.0", resp[0].Destination)

	w = performRequest(router, "DELETE", "/routes/172.16.0.0/255.255.0.0", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, "GET", "/routes", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
}

// ============================================================================
// Config Endpoint Tests
// ============================================================================

func TestGetConfig_Success(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.GET("/config", h.GetConfig)

	w := performRequest(router, "GET", "/config", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ConfigResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", resp.Network.LocalIP)
}

func TestPutConfig_PersistsNetworkValues(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.PUT("/config", h.PutConfig)

	w := performRequest(router, "PUT", "/config", `{"local_ip":"10.0.0.5","netmask":"255.255.255.0","gateway":"10.0.0.254"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok, restart required to apply", resp.Status)
}

func TestPutConfig_RejectsInvalidJSON(t *testing.T) {
	h := createTestHandler(t)
	router := gin.New()
	router.PUT("/config", h.PutConfig)

	w := performRequest(router, "PUT", "/config", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Handler Initialization Tests
// ============================================================================

func TestHandler_New(t *testing.T) {
	cfg := &config.Config{}
	h := handlers.New(cfg, nil, nil, nil, "")

	assert.NotNil(t, h)
}
