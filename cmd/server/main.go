// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/router"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/services"
)

func main() {
	logger := logrus.StandardLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.Log.Apply(logger)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redis failures disable the catalog cache
	cacheCtx, cancelCache := context.WithTimeout(context.Background(), 5*time.Second)
	cache, closeCache, err := services.NewCache(cacheCtx, cfg.Cache)
	cancelCache()
	if err != nil {
		logger.WithError(err).Warn("Catalog cache disabled")
		cache, closeCache = nil, func() error { return nil }
	}
	defer closeCache()

	// Initialize router
	r, limiter := router.Initialize(cfg, cache, logger)
	defer limiter.Stop()

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("addr", srv.Addr).Infof("API server listening on http://localhost:%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
