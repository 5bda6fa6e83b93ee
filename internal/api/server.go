// Package api provides the HTTP API server and handlers for scanshelf.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/ratelimit"
	"github.com/scanshelf/scanshelf/internal/service"
)

// Config holds HTTP-level settings for the server.
type Config struct {
	Version string
	// CaptureRateLimit is captures per second per client.
	CaptureRateLimit float64
	CaptureBurst     int
	// MaxCaptureBytes caps a capture request body.
	MaxCaptureBytes int64
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog        *service.CatalogService
	router         *chi.Mux
	api            huma.API
	captureLimiter *ratelimit.KeyedRateLimiter
	cfg            Config
	logger         *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(catalog *service.CatalogService, cfg Config, log *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.CaptureRateLimit <= 0 {
		cfg.CaptureRateLimit = 5
	}
	if cfg.CaptureBurst < 1 {
		cfg.CaptureBurst = 10
	}
	if cfg.MaxCaptureBytes <= 0 {
		cfg.MaxCaptureBytes = service.DefaultMaxCaptureBytes
	}

	s := &Server{
		catalog:        catalog,
		router:         chi.NewRouter(),
		captureLimiter: ratelimit.New(cfg.CaptureRateLimit, cfg.CaptureBurst),
		cfg:            cfg,
		logger:         logger.OrDiscard(log),
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("ScanShelf API", cfg.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerSettingsRoutes()
	s.registerMappingRoutes()
	s.registerProductRoutes()
	s.registerAssetRoutes()
	s.registerHistoryRoutes()
	s.registerScanRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	s.captureLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}
