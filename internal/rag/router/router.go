// Package router registers the contract assistant API routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/contract-assistant/internal/rag/handler"
)

// BasePath is the route group of the chain endpoints.
const BasePath = "/contract-assistant"

// Register registers the API routes on engine.
func Register(engine *gin.Engine, h *handler.RAGHandler) {
	engine.GET("/healthz", handler.Healthz)

	g := engine.Group(BasePath)
	{
		g.POST("/invoke", h.Invoke)
		g.POST("/query", h.Query)
		g.POST("/evaluate", h.Evaluate)
		g.GET("/stats", h.Stats)
		g.DELETE("/cache", h.ClearCache)
	}

	logger.Infow("HTTP routes registered", "base_path", BasePath)
}
