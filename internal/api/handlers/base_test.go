package handlers_test

import (
	"github.com/gin-gonic/gin"

	"github.com/anemos-os/netstack/internal/api/handlers"
)

func setupTestRouter(h *handlers.Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)
	api.GET("/config", h.GetConfig)
	api.PUT("/config", h.PutConfig)
	api.POST("/config/reload", h.ReloadConfig)
	api.GET("/arp", h.ListARP)
	api.POST("/arp", h.AddStaticARP)
	api.DELETE("/arp/:ip", h.RemoveStaticARP)
	api.GET("/sockets", h.ListSockets)
	api.GET("/routes", h.ListRoutes)
	api.POST("/routes", h.AddRoute)
	api.DELETE("/routes/:destination/:netmask", h.RemoveRoute)

	return r
}
