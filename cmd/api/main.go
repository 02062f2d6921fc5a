package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/venuebook/internal/config"
	"github.com/joshua-takyi/venuebook/internal/connect"
	"github.com/joshua-takyi/venuebook/internal/container"
	"github.com/joshua-takyi/venuebook/internal/obs"
	"github.com/joshua-takyi/venuebook/internal/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Starting venuebook API server",
		"environment", cfg.Environment,
		"booking_store", cfg.BookingStore,
		"image_backend", cfg.ImageBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "venuebook-api", cfg.Environment, cfg.OTelEndpoint)
	if err != nil {
		logger.Error("Failed to start tracing", "error", err)
		os.Exit(1)
	}

	// Initialize database connections
	clients, err := connect.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect backends", "error", err)
		os.Exit(1)
	}

	// Initialize dependency container
	appContainer, err := container.NewContainer(ctx, cfg, logger, clients)
	if err != nil {
		logger.Error("Failed to build services", "error", err)
		clients.Close(context.Background(), logger)
		os.Exit(1)
	}

	// Setup routes
	router := routes.SetupRoutes(appContainer)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("Server failed to start", "error", err)
	}

	logger.Info("Server is shutting down...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// pending notifications drain before the connections they need go away
	appContainer.Close(shutdownCtx)
	clients.Close(shutdownCtx, logger)
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", "error", err)
	}

	logger.Info("Server exited")
}
