// Package api exposes the card pipeline over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard"
	"github.com/menta2k/photocard/internal/config"
)

// NewRouter builds a gin engine serving the card API
func NewRouter(studio *photocard.Studio, cfg config.ServerConfig, log logrus.FieldLogger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	r.Use(gin.Recovery(), RequestID(), Logger(log))

	NewHandler(studio, log, cfg.MaxUploadMB).RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the handlers under /api
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)

		api.GET("/cards", h.listCards)
		api.POST("/cards", h.createCard)
		api.GET("/cards/:id", h.getCard)
		api.DELETE("/cards/:id", h.deleteCard)

		api.PUT("/cards/:id/text", h.updateText)
		api.POST("/cards/:id/photo", h.uploadPhoto)
		api.POST("/cards/:id/crop", h.crop)
		api.DELETE("/cards/:id/crop", h.clearCrop)

		api.POST("/cards/:id/commit", h.commit)
		api.PATCH("/cards/:id/elements/:element", h.patchElement)
		api.POST("/cards/:id/reset", h.reset)

		api.GET("/cards/:id/render", h.render)
	}
}
