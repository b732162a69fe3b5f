package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anemos-os/netstack/internal/api/models"
	"github.com/anemos-os/netstack/internal/config"
)

// GetConfig godoc
// @Summary Get current configuration
// @Description Returns the running configuration, with the API key redacted
// @Tags config
// @Produce json
// @Success 200 {object} models.ConfigResponse
// @Security ApiKeyAuth
// @Router /config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	cfg := h.config()
	c.JSON(http.StatusOK, models.ConfigResponse{
		Network: models.NetworkConfigResponse{
			LocalIP: cfg.Network.LocalIP,
			Netmask: cfg.Network.Netmask,
			Gateway: cfg.Network.Gateway,
		},
		Arp: models.ArpConfigResponse{
			Capacity:      cfg.Arp.Capacity,
			RetryMs:       cfg.Arp.RetryMs,
			MaxRetries:    cfg.Arp.MaxRetries,
			ResolvedTTLMs: cfg.Arp.ResolvedTTLMs,
			StaleTTLMs:    cfg.Arp.StaleTTLMs,
		},
		Tcp: models.TcpConfigResponse{
			Capacity:     cfg.Tcp.Capacity,
			SendBufBytes: cfg.Tcp.SendBufBytes,
			RecvBufBytes: cfg.Tcp.RecvBufBytes,
			RTOMs:        cfg.Tcp.RTOMs,
			MaxRetries:   cfg.Tcp.MaxRetries,
			TimeWaitMs:   cfg.Tcp.TimeWaitMs,
		},
		Socket: models.SocketConfigResponse{
			Capacity:        cfg.Socket.Capacity,
			EphemeralPortLo: cfg.Socket.EphemeralPortLo,
			EphemeralPortHi: cfg.Socket.EphemeralPortHi,
		},
		API: models.APIConfigResponse{
			Enabled: cfg.API.Enabled,
			Host:    cfg.API.Host,
			Port:    cfg.API.Port,
		},
	})
}

// PutConfig godoc
// @Summary Update durable network configuration
// @Description Persists local IP/netmask/gateway; takes effect on the next restart
// @Tags config
// @Accept json
// @Produce json
// @Param config body models.NetworkConfigUpdateRequest true "Network configuration"
// @Success 200 {object} models.StatusResponse
// @Security ApiKeyAuth
// @Router /config [put]
func (h *Handler) PutConfig(c *gin.Context) {
	var req models.NetworkConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "persistent store not available"})
		return
	}

	values := map[string]string{
		"local_ip": req.LocalIP,
		"netmask":  req.Netmask,
		"gateway":  req.Gateway,
	}
	if err := h.db.SetMultipleNetworkConfig(values); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok, restart required to apply"})
}

// ReloadConfig godoc
// @Summary Reload configuration from disk
// @Description Re-reads the YAML config file and environment, without restarting the process
// @Tags config
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Security ApiKeyAuth
// @Router /config/reload [post]
func (h *Handler) ReloadConfig(c *gin.Context) {
	cfg, err := config.Load(h.configPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.setConfig(cfg)
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
