package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anemos-os/netstack/internal/api/models"
	"github.com/anemos-os/netstack/internal/link"
	"github.com/anemos-os/netstack/internal/wire"
)

// ListARP godoc
// @Summary List ARP cache entries
// @Tags network
// @Produce json
// @Success 200 {array} models.ArpEntryResponse
// @Security ApiKeyAuth
// @Router /arp [get]
func (h *Handler) ListARP(c *gin.Context) {
	net := h.network()
	if net == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "network stack not ready"})
		return
	}

	entries := net.Arp.Snapshot()
	resp := make([]models.ArpEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, models.ArpEntryResponse{
			IP:          wire.FormatV4(e.IP),
			HWAddr:      e.HW.String(),
			State:       e.State.String(),
			LastUpdated: e.LastUpdated,
			Retries:     e.Retries,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// AddStaticARP godoc
// @Summary Add a static ARP mapping
// @Tags network
// @Accept json
// @Produce json
// @Param entry body models.StaticArpRequest true "Static ARP entry"
// @Success 200 {object} models.StatusResponse
// @Security ApiKeyAuth
// @Router /arp [post]
func (h *Handler) AddStaticARP(c *gin.Context) {
	var req models.StaticArpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	ip, err := wire.ParseV4(req.IP)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	hw, err := link.ParseHWAddr(req.HWAddr)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if h.db != nil {
		if err := h.db.AddStaticARP(req.IP, req.HWAddr); err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}
	}

	if net := h.network(); net != nil {
		net.Arp.StaticSet(ip, hw)
	}

	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// RemoveStaticARP godoc
// @Summary Remove a static ARP mapping
// @Tags network
// @Produce json
// @Param ip path string true "IPv4 address"
// @Success 200 {object} models.StatusResponse
// @Security ApiKeyAuth
// @Router /arp/{ip} [delete]
func (h *Handler) RemoveStaticARP(c *gin.Context) {
	ip := c.Param("ip")
	if h.db != nil {
		if err := h.db.RemoveStaticARP(ip); err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}
	}
	// The live cache entry is not force-evicted here: it ages out through
	// the normal Resolved -> Stale -> free lifecycle once no longer
	// refreshed by traffic or reinstalled at the next process start.
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
