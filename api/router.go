package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avinashw50w/batch-image-compressor-webp/batch"
	"github.com/avinashw50w/batch-image-compressor-webp/config"
)

func SetupRouter(m *batch.Manager, cfg *config.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log), gin.Recovery())
	h := NewHandler(m, cfg, log)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/compress", BodySizeLimit(cfg.MaxUploadSize), h.handleCompress)
		v1.GET("/progress/:batchId", h.handleProgress)
		v1.GET("/download/:batchId", h.handleDownload)
		v1.POST("/cleanup/:batchId", h.handleCleanup)
	}
	return r
}
