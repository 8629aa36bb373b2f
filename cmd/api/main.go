package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imagehost/backend/internal/app"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	// Initialize configuration
	cfg := config.New()

	if err := logger.Init(&logger.Config{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		FilePath: cfg.LogFile,
	}); err != nil {
		panic(err)
	}
	if envErr != nil {
		logger.Get().Info("No .env file found, using environment variables")
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.Engine,
		ReadTimeout:  120 * time.Second, // large video uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Infof("Starting server on port %s (blob backend: %s, rate limit backend: %s)",
			cfg.Port, cfg.BlobBackend, cfg.RateLimitBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Get().Info("Server exited")
}
