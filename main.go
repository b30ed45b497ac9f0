// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avinashw50w/batch-image-compressor-webp/api"
	"github.com/avinashw50w/batch-image-compressor-webp/batch"
	"github.com/avinashw50w/batch-image-compressor-webp/config"
	"github.com/avinashw50w/batch-image-compressor-webp/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := storage.EnsureDirs(cfg.UploadDir, cfg.OutputDir); err != nil {
		logger.Fatal("Failed to create storage directories", zap.Error(err))
	}

	// Nothing in either area can belong to a live batch yet; clear out
	// whatever a previous process left behind.
	storage.Sweep(cfg.UploadDir, logger)
	storage.Sweep(cfg.OutputDir, logger)

	manager := batch.NewManager(cfg, logger)

	router := api.SetupRouter(manager, cfg, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Create a context that can be canceled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	stop()
	logger.Info("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// All in-memory batch state dies with the process, so any files left
	// on disk are unreachable; sweep them on the way out.
	storage.Sweep(cfg.UploadDir, logger)
	storage.Sweep(cfg.OutputDir, logger)

	logger.Info("Server exiting")
}
