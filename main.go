package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/config"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/logger"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/messaging"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/metrics"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/storage"

	"github.com/rs/zerolog/log"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/LexiconIndonesia/photo-storage-gateway/docs"
)

// @title          Photo Storage Gateway API
// @version        1.0
// @description    Upload, list and delete customer photos held in object storage. Read access is granted through time-limited signed URLs.

// @host     localhost:8080
// @BasePath /
// @schemes  http https

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()

	level := logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info().Str("level", level.String()).Str("backend", cfg.Storage.Backend).Msg("Logger initialized")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Create a base context with cancel for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// INITIATE SECRETS
	secretSource, secretCloser, err := setupSecretSource(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Secrets.Source).Msg("Failed to setup secret source")
	}

	// INITIATE STORAGE
	photoBackend, err := setupBackend(ctx, cfg, secretSource)
	if secretCloser != nil {
		// the descriptor is read once at start
		if cerr := secretCloser.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close secret source")
		}
	}
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to setup storage backend")
	}
	defer photoBackend.Close()

	// INITIATE METRICS
	observer, err := metrics.NewPrometheusObserver("", prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	opts := []gateway.Option{gateway.WithObserver(observer)}

	// INITIATE NATS CLIENT
	if cfg.Nats.Enabled {
		natsBroker, err := messaging.NewNatsBroker(ctx, messaging.BrokerConfig{
			URL:      cfg.Nats.URL(),
			Username: cfg.Nats.Username,
			Password: cfg.Nats.Password,
			Stream:   cfg.Nats.Stream,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup NATS client")
		}
		defer natsBroker.Close()
		opts = append(opts, gateway.WithPublisher(messaging.NewEventPublisher(natsBroker)))
	} else {
		log.Info().Msg("NATS disabled, photo events are not published")
	}

	// INITIATE GATEWAY
	photoGateway, err := gateway.New(photoBackend.store, photoBackend.issuer, gateway.Config{
		MaxUploadBytes:      cfg.Storage.MaxUploadBytes,
		AllowedContentTypes: gateway.DefaultContentTypes,
		SignConcurrency:     cfg.Storage.SignConcurrency,
		OperationTimeout:    cfg.Storage.Timeout,
	}, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the photo gateway")
	}

	// INITIATE SERVER
	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	// Inject dependencies
	server.SetGateway(photoGateway)
	server.SetGatherer(prometheus.DefaultGatherer)
	if memory, ok := photoBackend.store.(*storage.MemoryStorage); ok {
		server.SetObjectSource(memory)
	}

	// Setup routes
	server.setupRoute()

	// Start server in a goroutine
	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Str("address", cfg.Listen.Addr()).Msg("Server started successfully")
	log.Info().Str("swagger", fmt.Sprintf("http://%s/swagger/index.html", cfg.Listen.Addr())).Msg("Swagger documentation available at")

	// Wait for shutdown signal or a server failure
	select {
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Server stopped unexpectedly")
	}

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server gracefully stopped")
}
