// Package router provides assistant service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/guideline-rag/internal/assistant/handler"
)

// Register registers the assistant service routes.
func Register(engine *gin.Engine, h *handler.AssistantHandler) {
	engine.GET("/health", h.Health)

	api := engine.Group("/api")
	{
		api.POST("/ingest", h.Ingest)
		api.POST("/query", h.Query)
		api.GET("/status", h.Status)
		api.GET("/debug/pages", h.DebugPages)
	}

	logger.Info("HTTP routes registered")
}
