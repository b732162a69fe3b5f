package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/anemos-os/netstack/internal/api/models"
	"github.com/anemos-os/netstack/internal/socket"
	"github.com/anemos-os/netstack/internal/wire"
)

var socketTypeNames = map[socket.Type]string{
	socket.Stream:   "stream",
	socket.Datagram: "datagram",
	socket.Raw:      "raw",
}

// ListSockets godoc
// @Summary List live socket table entries
// @Tags network
// @Produce json
// @Success 200 {array} models.SocketResponse
// @Security ApiKeyAuth
// @Router /sockets [get]
func (h *Handler) ListSockets(c *gin.Context) {
	net := h.network()
	if net == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "network stack not ready"})
		return
	}

	entries := net.Socket.Snapshot()
	resp := make([]models.SocketResponse, 0, len(entries))
	for _, e := range entries {
		item := models.SocketResponse{
			Handle:     int64(e.Handle),
			TraceID:    uuid.NewString(),
			Type:       socketTypeNames[e.Type],
			Protocol:   e.Protocol,
			LocalIP:    wire.FormatV4(e.LocalIP),
			LocalPort:  e.LocalPort,
			Connected:  e.Connected,
			Listening:  e.Listening,
		}
		if e.RemoteIP != 0 || e.RemotePort != 0 {
			item.RemoteIP = wire.FormatV4(e.RemoteIP)
			item.RemotePort = e.RemotePort
		}
		if e.HasTCP {
			if st, err := net.TCP.StateOf(e.TCPID); err == nil {
				item.TCPState = st.String()
			}
		}
		resp = append(resp, item)
	}
	c.JSON(http.StatusOK, resp)
}
