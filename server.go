package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/config"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type AppHttpServer struct {
	router   *chi.Mux
	cfg      config.Config
	server   *http.Server
	gateway  *gateway.Gateway
	gatherer prometheus.Gatherer
	objects  handler.ObjectGetter
}

func NewAppHttpServer(cfg config.Config) (*AppHttpServer, error) {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(cfg.Listen.RequestTimeout))

	server := &AppHttpServer{
		router:   r,
		cfg:      cfg,
		gatherer: prometheus.DefaultGatherer,
	}
	return server, nil
}

// SetGateway sets the photo gateway dependency
func (s *AppHttpServer) SetGateway(g *gateway.Gateway) {
	s.gateway = g
}

// SetObjectSource serves the memory backend's objects under the path of its base URL
func (s *AppHttpServer) SetObjectSource(objects handler.ObjectGetter) {
	s.objects = objects
}

// SetGatherer sets the registry served on /metrics
func (s *AppHttpServer) SetGatherer(g prometheus.Gatherer) {
	s.gatherer = g
}

func (s *AppHttpServer) setupRoute() {
	r := s.router

	if s.gateway == nil {
		log.Fatal().Msg("Photo gateway dependency not set")
	}

	// API Documentation with Swagger
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // The URL pointing to API definition
	))

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	healthHandler := handler.NewHealthHandler(s.gateway, s.cfg.Storage.Backend)
	photoHandler := handler.NewPhotoHandler(s.gateway, s.cfg.Storage.MaxUploadBytes)

	r.Mount("/health", healthHandler.Router())
	r.Mount("/photos", photoHandler.Router())

	if s.objects != nil {
		mountPath := objectMountPath(s.cfg.Storage.MemoryBaseURL)
		r.Mount(mountPath, handler.NewObjectHandler(s.objects).Router())
		log.Info().Str("path", mountPath).Msg("Serving in-memory objects")
	}
}

func objectMountPath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return "/objects"
	}
	return "/" + strings.Trim(u.Path, "/")
}

func (s *AppHttpServer) start() error {
	r := s.router
	cfg := s.cfg
	log.Info().Msg("Starting up server...")

	s.server = &http.Server{
		Addr:              cfg.Listen.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Listen.RequestTimeout,
		WriteTimeout:      cfg.Listen.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// stop gracefully shuts down the server
func (s *AppHttpServer) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
