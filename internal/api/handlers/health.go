package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anemos-os/netstack/internal/api/models"
	"github.com/anemos-os/netstack/internal/hostinfo"
)

// Health godoc
// @Summary Health check
// @Description Returns server health status
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats godoc
// @Summary Server statistics
// @Description Returns runtime statistics including host CPU/memory pressure and live stack counters
// @Tags system
// @Produce json
// @Success 200 {object} models.ServerStatsResponse
// @Security ApiKeyAuth
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	uptime := time.Since(h.startTime)
	snap := hostinfo.Sample(200 * time.Millisecond)

	resp := models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		CPU: models.CPUStats{
			NumCPU:      snap.CPU.NumCPU,
			UsedPercent: snap.CPU.UsedPercent,
			IdlePercent: snap.CPU.IdlePercent,
		},
		Memory: models.MemoryStats{
			TotalMB:     snap.Memory.TotalMB,
			FreeMB:      snap.Memory.FreeMB,
			UsedMB:      snap.Memory.UsedMB,
			UsedPercent: snap.Memory.UsedPercent,
		},
	}

	if net := h.network(); net != nil {
		resp.Network.ArpCacheEntries = len(net.Arp.Snapshot())
		sockets := net.Socket.Snapshot()
		resp.Network.SocketCount = len(sockets)
		for _, s := range sockets {
			if s.HasTCP {
				resp.Network.TCPConnections++
			}
		}
	}
	if h.metrics != nil {
		totals := h.metrics.Totals()
		resp.Network.FramesReceived = totals.FramesReceived
		resp.Network.FramesDropped = totals.FramesDropped
		resp.Network.ChecksumErrors = totals.ChecksumErrors
		resp.Network.TCPRetransmits = totals.TCPRetransmits
		resp.Network.UDPDatagrams = totals.UDPDatagrams
		resp.Network.SynRejected = totals.SynRejected
	}

	c.JSON(http.StatusOK, resp)
}
