// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the recipegate server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"recipegate/config"
	"recipegate/internal/fallback"
	"recipegate/internal/httpclient"
	"recipegate/internal/offline"
	"recipegate/internal/recipeapi"
	"recipegate/internal/recipes"
	"recipegate/internal/server"
	"recipegate/internal/storage"
	"recipegate/internal/usage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config     *config.Config
	storage    storage.Storage
	ledger     *usage.Ledger
	offline    *offline.Result
	controller *offline.Controller
	recipes    *recipes.Service
	server     *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	app := &App{config: cfg}

	store, err := storage.New(ctx, storageConfig(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.storage = store

	kv, err := storage.NewKV(ctx, store, storageConfig(cfg.Storage))
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to initialize key/value store: %w", err))
	}

	loc := time.Local
	if cfg.Usage.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Usage.Timezone)
		if err != nil {
			return nil, app.abort(fmt.Errorf("invalid usage timezone: %w", err))
		}
	}
	app.ledger = usage.NewLedger(kv, usage.Config{
		DailyLimit:        cfg.Usage.DailyLimit,
		WarningThreshold:  cfg.Usage.WarningThreshold,
		CriticalThreshold: cfg.Usage.CriticalThreshold,
		StorageKey:        cfg.Usage.StorageKey,
		Location:          loc,
	})

	matcher, err := buildMatcher(cfg.Fallback)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to load fallback dataset: %w", err))
	}

	offlineResult, err := offline.New(ctx, offlineConfig(cfg), nil)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to initialize offline cache: %w", err))
	}
	app.offline = offlineResult

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Wrap = offlineResult.Wrap
	httpClient := httpclient.NewHTTPClient(&httpCfg)

	client := recipeapi.New(recipeAPIConfig(cfg.Upstream), httpClient)

	app.recipes = recipes.New(client, app.ledger, matcher, recipes.Config{
		SearchTTL:           cfg.Recipes.SearchTTL,
		DetailsTTL:          cfg.Recipes.DetailsTTL,
		RandomTTL:           cfg.Recipes.RandomTTL,
		IngredientsTTL:      cfg.Recipes.IngredientsTTL,
		SearchCapacity:      cfg.Recipes.SearchCapacity,
		DetailsCapacity:     cfg.Recipes.DetailsCapacity,
		RandomCapacity:      cfg.Recipes.RandomCapacity,
		IngredientsCapacity: cfg.Recipes.IngredientsCapacity,
		DeduplicateInflight: cfg.Recipes.DeduplicateInflight,
	})

	var offlineControl server.OfflineControl
	if offlineResult.Transport != nil {
		app.controller = offline.NewController(offlineResult.Transport, app.recipes, httpClient, client.BaseURL())
		offlineControl = app.controller
	}

	bodyLimit, err := config.ParseBodySizeLimit(cfg.Server.BodySizeLimit)
	if err != nil {
		return nil, app.abort(err)
	}

	app.logStartupInfo(matcher.Len())

	app.server = server.New(app.recipes, offlineControl, &server.Config{
		AdminKey:        cfg.Server.AdminKey,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodySizeLimit:   bodyLimit,
	})

	return app, nil
}

// abort releases whatever New opened before err and returns err.
func (a *App) abort(err error) error {
	if closeErr := a.closeResources(); closeErr != nil {
		return fmt.Errorf("%w (also: close error: %v)", err, closeErr)
	}
	return err
}

// Recipes returns the recipe access service.
func (a *App) Recipes() *recipes.Service {
	return a.recipes
}

// Offline returns the offline cache controller, or nil when the cache is disabled.
func (a *App) Offline() *offline.Controller {
	return a.controller
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context timeout/cancellation.
// 2. Offline controller and transport (stops background refreshes).
// 3. Storage close.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() error {
	var errs []error
	if a.controller != nil {
		if err := a.controller.Close(); err != nil {
			slog.Error("offline controller close error", "error", err)
			errs = append(errs, fmt.Errorf("offline controller close: %w", err))
		}
	}
	if a.offline != nil {
		if err := a.offline.Close(); err != nil {
			slog.Error("offline cache close error", "error", err)
			errs = append(errs, fmt.Errorf("offline close: %w", err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			slog.Error("storage close error", "error", err)
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(fallbackRecipes int) {
	cfg := a.config

	if cfg.Server.AdminKey == "" {
		slog.Warn("RECIPEGATE_ADMIN_KEY not set - admin routes are unauthenticated",
			"recommendation", "set RECIPEGATE_ADMIN_KEY to protect /admin")
	} else {
		slog.Info("admin authentication enabled")
	}

	if cfg.Upstream.APIKey == "" {
		slog.Warn("SPOONACULAR_API_KEY not set - serving the local fallback catalog only")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("storage configured", "type", cfg.Storage.Type)
	slog.Info("usage ledger configured",
		"daily_limit", cfg.Usage.DailyLimit,
		"timezone", cfg.Usage.Timezone,
	)
	slog.Info("fallback catalog loaded", "recipes", fallbackRecipes)

	if cfg.Offline.Enabled {
		slog.Info("offline cache enabled",
			"store", cfg.Offline.Store,
			"version", cfg.Offline.Version,
		)
	} else {
		slog.Info("offline cache disabled")
	}
}

func storageConfig(c config.StorageConfig) storage.Config {
	return storage.Config{
		Type:       c.Type,
		File:       storage.FileConfig{Dir: c.File.Dir},
		SQLite:     storage.SQLiteConfig{Path: c.SQLite.Path},
		PostgreSQL: storage.PostgreSQLConfig{URL: c.PostgreSQL.URL, MaxConns: c.PostgreSQL.MaxConns},
		MongoDB:    storage.MongoDBConfig{URL: c.MongoDB.URL, Database: c.MongoDB.Database},
		Redis:      storage.RedisConfig{URL: c.Redis.URL, Prefix: c.Redis.Prefix},
	}
}

func recipeAPIConfig(c config.UpstreamConfig) recipeapi.Config {
	apiCfg := recipeapi.DefaultConfig(c.APIKey)
	apiCfg.BaseURL = c.BaseURL
	apiCfg.MaxRetries = c.MaxRetries
	switch {
	case c.CircuitBreakerFailures < 0:
		apiCfg.CircuitBreaker = nil
		return apiCfg
	case c.CircuitBreakerFailures > 0:
		apiCfg.CircuitBreaker.FailureThreshold = c.CircuitBreakerFailures
	}
	if c.CircuitBreakerTimeout > 0 {
		apiCfg.CircuitBreaker.Timeout = c.CircuitBreakerTimeout
	}
	return apiCfg
}

func offlineConfig(cfg *config.Config) offline.Config {
	oc := offline.DefaultConfig()
	oc.Enabled = cfg.Offline.Enabled
	oc.Version = cfg.Offline.Version
	oc.Store = cfg.Offline.Store
	if cfg.Offline.SQLitePath != "" {
		oc.SQLitePath = cfg.Offline.SQLitePath
	}
	if cfg.Offline.MaxAssetBytes > 0 {
		oc.MaxAssetBytes = cfg.Offline.MaxAssetBytes
	}
	if u, err := url.Parse(cfg.Upstream.BaseURL); err == nil && u.Hostname() != "" {
		oc.APIHost = u.Hostname()
	}
	return oc
}

func buildMatcher(cfg config.FallbackConfig) (*fallback.Matcher, error) {
	weights := fallback.Weights{
		MatchPoints:              cfg.Weights.MatchPoints,
		ProportionalBonus:        cfg.Weights.ProportionalBonus,
		SimplicityBonus:          cfg.Weights.SimplicityBonus,
		SimplicityMaxIngredients: cfg.Weights.SimplicityMaxIngredients,
		MissingPenalty:           cfg.Weights.MissingPenalty,
	}
	if cfg.DatasetPath == "" {
		return fallback.NewDefault(weights)
	}

	raw, err := os.ReadFile(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	list, err := fallback.Parse(raw)
	if err != nil {
		return nil, err
	}
	return fallback.New(list, weights), nil
}
