// Package recipes is the single entry point callers use to read recipe data.
// Every operation consults a domain cache, then the usage ledger, then the
// upstream API, and records the outcome on the ledger before caching it.
// Searches fall back to the bundled dataset when the upstream API is
// unconfigured or out of quota; the other operations surface typed errors.
package recipes

import (
	"context"
	"time"

	"recipegate/internal/core"
)

// Operation names. They prefix cache keys and label ledger endpoints.
const (
	OpSearch            = "search"
	OpDetails           = "details"
	OpRandom            = "random"
	OpFindByIngredients = "findByIngredients"
	OpTestConnection    = "testConnection"
)

// Upstream is the remote recipe API. *recipeapi.Client satisfies it.
type Upstream interface {
	Configured() bool
	ComplexSearch(ctx context.Context, query string, opts core.SearchOptions) (core.SearchResult, error)
	Information(ctx context.Context, id int) (core.RecipeDetail, error)
	Random(ctx context.Context, number int, tags []string) ([]core.Recipe, error)
	FindByIngredients(ctx context.Context, ingredients []string, opts core.IngredientOptions) ([]core.ScoredRecipe, error)
	Ping(ctx context.Context) (core.ConnectionResult, error)
}

// Config holds the per-domain cache policy.
type Config struct {
	SearchTTL      time.Duration `yaml:"search_ttl"`
	DetailsTTL     time.Duration `yaml:"details_ttl"`
	RandomTTL      time.Duration `yaml:"random_ttl"`
	IngredientsTTL time.Duration `yaml:"ingredients_ttl"`

	SearchCapacity      int `yaml:"search_capacity"`
	DetailsCapacity     int `yaml:"details_capacity"`
	RandomCapacity      int `yaml:"random_capacity"`
	IngredientsCapacity int `yaml:"ingredients_capacity"`

	// DeduplicateInflight makes concurrent identical requests share one
	// upstream call.
	DeduplicateInflight bool `yaml:"deduplicate_inflight"`

	// InflightTimeout bounds a shared upstream call once no single caller
	// owns its cancellation.
	InflightTimeout time.Duration `yaml:"inflight_timeout"`

	// Clock overrides time.Now for the caches, mainly for tests.
	Clock func() time.Time `yaml:"-"`
}

// DefaultConfig returns the standard TTL policy.
func DefaultConfig() Config {
	return Config{
		SearchTTL:           15 * time.Minute,
		DetailsTTL:          60 * time.Minute,
		RandomTTL:           5 * time.Minute,
		IngredientsTTL:      15 * time.Minute,
		SearchCapacity:      100,
		DetailsCapacity:     200,
		RandomCapacity:      20,
		IngredientsCapacity: 100,
		DeduplicateInflight: true,
		InflightTimeout:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SearchTTL <= 0 {
		c.SearchTTL = def.SearchTTL
	}
	if c.DetailsTTL <= 0 {
		c.DetailsTTL = def.DetailsTTL
	}
	if c.RandomTTL <= 0 {
		c.RandomTTL = def.RandomTTL
	}
	if c.IngredientsTTL <= 0 {
		c.IngredientsTTL = def.IngredientsTTL
	}
	if c.SearchCapacity <= 0 {
		c.SearchCapacity = def.SearchCapacity
	}
	if c.DetailsCapacity <= 0 {
		c.DetailsCapacity = def.DetailsCapacity
	}
	if c.RandomCapacity <= 0 {
		c.RandomCapacity = def.RandomCapacity
	}
	if c.IngredientsCapacity <= 0 {
		c.IngredientsCapacity = def.IngredientsCapacity
	}
	if c.InflightTimeout <= 0 {
		c.InflightTimeout = def.InflightTimeout
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
