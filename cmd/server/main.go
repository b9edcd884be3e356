package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/user/vistela-backend/internal/config"
	"github.com/user/vistela-backend/internal/server"
	"github.com/user/vistela-backend/internal/storage"
	"github.com/user/vistela-backend/internal/store"
	"github.com/user/vistela-backend/internal/upload"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Initialize structured JSON logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL store
	pgStore, err := store.NewPostgresStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	// Initialize blob store client
	blobClient, err := storage.NewClient(ctx, &cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store client")
	}
	log.Info().Str("bucket", blobClient.Bucket()).Msg("Blob store client initialized")

	// Initialize upload service
	uploadService := upload.NewService(pgStore, blobClient, cfg.S3.UploadFolder)
	log.Info().Msg("Upload service initialized")

	// Initialize HTTP server
	httpServer := server.NewServer(pgStore, uploadService, cfg.Server.UploadRateLimit)

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().Msg("Vistela backend started successfully")

	// Wait for shutdown signal
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. Stop accepting new HTTP requests
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 2. Close database connection pool
	if err := pgStore.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	cancel()

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}
