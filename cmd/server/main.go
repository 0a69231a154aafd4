package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/config"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/logging"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/server"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Parse flags
	port := flag.String("port", "", "Server port (overrides PORT)")
	registry := flag.String("registry", "", "Target registry file (overrides REGISTRY_PATH)")
	dev := flag.Bool("dev", false, "Development mode: console logs at debug level")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *registry != "" {
		cfg.Registry.Path = *registry
	}
	if *dev {
		cfg.Logging.Development = true
	}

	logger := logging.FromConfig(cfg.Logging)

	// Create server
	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}
}
