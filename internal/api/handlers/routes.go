package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anemos-os/netstack/internal/api/models"
)

// ListRoutes godoc
// @Summary List static routes
// @Tags network
// @Produce json
// @Success 200 {array} models.RouteResponse
// @Security ApiKeyAuth
// @Router /routes [get]
func (h *Handler) ListRoutes(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, []models.RouteResponse{})
		return
	}
	routes, err := h.db.ListStaticRoutes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	resp := make([]models.RouteResponse, 0, len(routes))
	for _, r := range routes {
		resp = append(resp, models.RouteResponse{
			ID:          r.ID,
			Destination: r.Destination,
			Netmask:     r.Netmask,
			Gateway:     r.Gateway,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// AddRoute godoc
// @Summary Add a static route
// @Tags network
// @Accept json
// @Produce json
// @Param route body models.StaticRouteRequest true "Static route"
// @Success 200 {object} models.StatusResponse
// @Security ApiKeyAuth
// @Router /routes [post]
func (h *Handler) AddRoute(c *gin.Context) {
	var req models.StaticRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "persistent store not available"})
		return
	}
	if err := h.db.AddStaticRoute(req.Destination, req.Netmask, req.Gateway); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// RemoveRoute godoc
// @Summary Remove a static route
// @Tags network
// @Produce json
// @Param destination path string true "Destination network"
// @Param netmask path string true "Netmask"
// @Success 200 {object} models.StatusResponse
// @Security ApiKeyAuth
// @Router /routes/{destination}/{netmask} [delete]
func (h *Handler) RemoveRoute(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "persistent store not available"})
		return
	}
	destination := c.Param("destination")
	netmask := c.Param("netmask")
	if err := h.db.RemoveStaticRoute(destination, netmask); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
