package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/anemos-os/netstack/internal/api/handlers"
	"github.com/anemos-os/netstack/internal/api/middleware"
	"github.com/anemos-os/netstack/internal/config"

	_ "github.com/anemos-os/netstack/internal/api/docs" // swagger docs
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	// Swagger UI at /swagger/*
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	// Optional API key protection.
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

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
}
