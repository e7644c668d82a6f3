// Package server exposes the recipe access layer over HTTP.
package server

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodySizeLimit caps request bodies when Config.BodySizeLimit is unset.
const DefaultBodySizeLimit int64 = 1 << 20

// Server wraps the Echo router and the listening http.Server
type Server struct {
	echo    *echo.Echo
	handler *Handler
	http    *http.Server
}

// Config holds server configuration options
type Config struct {
	AdminKey        string // Optional: bearer token required on /admin routes
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 1MB)
}

// New creates a new HTTP server. offline may be nil when the offline cache is disabled.
func New(recipes RecipeService, offline OfflineControl, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	e := echo.New()
	handler := NewHandler(recipes, offline)

	bodySizeLimit := DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}

	// Global middleware stack (order matters)
	e.Use(requestIDMiddleware())
	e.Use(requestLoggerMiddleware())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodySizeLimit))

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	e.GET("/v1/recipes/search", handler.SearchRecipes)
	e.GET("/v1/recipes/random", handler.RandomRecipes)
	e.GET("/v1/recipes/:id", handler.RecipeDetails)
	e.POST("/v1/recipes/by-ingredients", handler.FindByIngredients)
	e.POST("/v1/recipes/by-ingredients/local", handler.FindLocalByIngredients)
	e.GET("/v1/status", handler.APIStatus)
	e.GET("/v1/status/connection", handler.TestConnection)
	e.GET("/v1/usage", handler.Usage)

	// Admin routes
	admin := e.Group("/admin", AuthMiddleware(cfg.AdminKey))
	admin.POST("/usage/reset", handler.ResetUsage)
	admin.DELETE("/cache", handler.ClearCaches)
	admin.DELETE("/cache/searches/:term", handler.InvalidateSearches)
	admin.POST("/offline/clear", handler.OfflineClear)
	admin.POST("/offline/recipes", handler.OfflineCacheRecipe)
	admin.GET("/offline/info", handler.OfflineInfo)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start listens on addr and serves until Shutdown is called.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
