package recipes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"recipegate/internal/cache"
	"recipegate/internal/core"
	"recipegate/internal/fallback"
	"recipegate/internal/usage"
)

const (
	defaultRandomCount = 1
	maxRandomCount     = 100
)

// Service is the recipe access façade. It owns one cache per data domain.
// It is safe for concurrent use.
type Service struct {
	upstream Upstream
	ledger   *usage.Ledger
	matcher  *fallback.Matcher
	cfg      Config

	searches    *cache.TTLCache[core.SearchResult]
	details     *cache.TTLCache[core.RecipeDetail]
	random      *cache.TTLCache[[]core.Recipe]
	ingredients *cache.TTLCache[[]core.ScoredRecipe]

	inflight singleflight.Group
}

// New creates a Service. upstream, ledger and matcher are required.
func New(upstream Upstream, ledger *usage.Ledger, matcher *fallback.Matcher, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		upstream: upstream,
		ledger:   ledger,
		matcher:  matcher,
		cfg:      cfg,
		searches: cache.New[core.SearchResult](cache.Config{
			Name: OpSearch, Capacity: cfg.SearchCapacity, DefaultTTL: cfg.SearchTTL, Clock: cfg.Clock,
		}),
		details: cache.New[core.RecipeDetail](cache.Config{
			Name: OpDetails, Capacity: cfg.DetailsCapacity, DefaultTTL: cfg.DetailsTTL, Clock: cfg.Clock,
		}),
		random: cache.New[[]core.Recipe](cache.Config{
			Name: OpRandom, Capacity: cfg.RandomCapacity, DefaultTTL: cfg.RandomTTL, Clock: cfg.Clock,
		}),
		ingredients: cache.New[[]core.ScoredRecipe](cache.Config{
			Name: OpFindByIngredients, Capacity: cfg.IngredientsCapacity, DefaultTTL: cfg.IngredientsTTL, Clock: cfg.Clock,
		}),
	}
}

// SearchRecipes runs a free-text search. When the upstream API is not
// configured, the daily quota is spent, or the upstream reports 402/429,
// the search is answered from the bundled dataset instead. Those results
// are never cached and never count against the ledger.
func (s *Service) SearchRecipes(ctx context.Context, query string, opts core.SearchOptions) (*core.SearchResult, error) {
	query = strings.TrimSpace(query)
	params := opts.Params()
	params["query"] = query
	key := cache.Key(OpSearch, params)

	if cached, ok := s.searches.Get(key); ok {
		s.ledger.RecordCacheHit(ctx)
		cached.Source = core.SourceCache
		cached.Results = slices.Clone(cached.Results)
		return &cached, nil
	}

	if !s.upstream.Configured() {
		return s.localSearch(query, opts, reasonNotConfigured), nil
	}
	if !s.ledger.CanMakeCall(ctx) {
		return s.localSearch(query, opts, reasonQuotaGate), nil
	}

	result, err := fetch(ctx, s, s.searches, key, OpSearch, s.cfg.SearchTTL, cloneSearch,
		func(ctx context.Context) (core.SearchResult, error) {
			return s.upstream.ComplexSearch(ctx, query, opts)
		})
	if err != nil {
		if core.IsQuotaError(err) {
			slog.Warn("upstream quota exhausted, serving local results", "query", query, "request_id", core.GetRequestID(ctx), "error", err)
			return s.localSearch(query, opts, reasonQuotaExceeded), nil
		}
		return nil, err
	}
	return &result, nil
}

func (s *Service) localSearch(query string, opts core.SearchOptions, reason string) *core.SearchResult {
	fallbackResponses.WithLabelValues(reason).Inc()
	slog.Debug("search served from local dataset", "query", query, "reason", reason)
	result := s.matcher.Search(query, opts)
	return &result
}

// GetRecipeDetails returns the full document for one recipe. There is no
// local substitute: an unconfigured API, a spent quota and upstream
// failures are all returned as errors.
func (s *Service) GetRecipeDetails(ctx context.Context, id int) (*core.RecipeDetail, error) {
	if id <= 0 {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("invalid recipe id %d", id), nil)
	}
	key := cache.Key(OpDetails, map[string]any{"id": id})

	if cached, ok := s.details.Get(key); ok {
		s.ledger.RecordCacheHit(ctx)
		return &cached, nil
	}
	if err := s.gate(ctx, "getRecipeDetails"); err != nil {
		return nil, err
	}

	detail, err := fetch(ctx, s, s.details, key, OpDetails, s.cfg.DetailsTTL, nil,
		func(ctx context.Context) (core.RecipeDetail, error) {
			return s.upstream.Information(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetRandomRecipes returns count random recipes, as used for featured lists.
// A non-positive count requests a single recipe.
func (s *Service) GetRandomRecipes(ctx context.Context, count int) ([]core.Recipe, error) {
	if count <= 0 {
		count = defaultRandomCount
	}
	if count > maxRandomCount {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("count must be at most %d", maxRandomCount), nil)
	}
	key := cache.Key(OpRandom, map[string]any{"number": count})

	if cached, ok := s.random.Get(key); ok {
		s.ledger.RecordCacheHit(ctx)
		return slices.Clone(cached), nil
	}
	if err := s.gate(ctx, "getRandomRecipes"); err != nil {
		return nil, err
	}

	return fetch(ctx, s, s.random, key, OpRandom, s.cfg.RandomTTL, slices.Clone[[]core.Recipe],
		func(ctx context.Context) ([]core.Recipe, error) {
			return s.upstream.Random(ctx, count, nil)
		})
}

// FindRecipesByIngredients asks the upstream API which recipes can be made
// from the given ingredients. Like GetRecipeDetails it has no local
// substitute; FindLocalRecipesByIngredients is the explicit offline variant.
func (s *Service) FindRecipesByIngredients(ctx context.Context, ingredients []string, opts core.IngredientOptions) ([]core.ScoredRecipe, error) {
	normalized := core.NormalizeIngredients(ingredients)
	if len(normalized) == 0 {
		return nil, core.NewInvalidRequestError("at least one ingredient is required", nil)
	}

	sorted := append([]string(nil), normalized...)
	sort.Strings(sorted)
	params := opts.Params()
	params["ingredients"] = strings.Join(sorted, ",")
	key := cache.Key(OpFindByIngredients, params)

	if cached, ok := s.ingredients.Get(key); ok {
		s.ledger.RecordCacheHit(ctx)
		return slices.Clone(cached), nil
	}
	if err := s.gate(ctx, "findRecipesByIngredients"); err != nil {
		return nil, err
	}

	return fetch(ctx, s, s.ingredients, key, OpFindByIngredients, s.cfg.IngredientsTTL, slices.Clone[[]core.ScoredRecipe],
		func(ctx context.Context) ([]core.ScoredRecipe, error) {
			return s.upstream.FindByIngredients(ctx, normalized, opts)
		})
}

// FindLocalRecipesByIngredients scores the bundled dataset against the
// given ingredients. It never touches the network, the caches or the ledger.
func (s *Service) FindLocalRecipesByIngredients(_ context.Context, ingredients []string, opts core.IngredientOptions) []core.ScoredRecipe {
	return s.matcher.FindByIngredients(ingredients, opts)
}

// gate checks configuration and quota for operations without a local
// substitute.
func (s *Service) gate(ctx context.Context, operation string) error {
	if !s.upstream.Configured() {
		return core.NewNotConfiguredError(operation)
	}
	if !s.ledger.CanMakeCall(ctx) {
		return core.NewQuotaError(fmt.Sprintf("daily API limit of %d calls reached; try again after the daily reset", s.ledger.Limit()))
	}
	return nil
}

// fetch performs one upstream call, records it on the ledger and caches a
// successful result. With deduplication enabled, concurrent callers for the
// same key share a single call and a single ledger entry. The shared call is
// detached from any one caller's cancellation; each caller stops waiting when
// its own context ends. Every caller gets its own copy of the value via
// clone, so nobody holds the slice stored in the cache.
func fetch[V any](ctx context.Context, s *Service, c *cache.TTLCache[V], key, endpoint string, ttl time.Duration, clone func(V) V, call func(context.Context) (V, error)) (V, error) {
	if clone == nil {
		clone = func(v V) V { return v }
	}

	run := func(ctx context.Context) (V, error) {
		v, err := call(ctx)
		s.ledger.RecordCall(context.WithoutCancel(ctx), endpoint, err == nil)
		if err != nil {
			return v, err
		}
		c.Set(key, v, ttl)
		return v, nil
	}

	if !s.cfg.DeduplicateInflight {
		v, err := run(ctx)
		if err != nil {
			return v, err
		}
		return clone(v), nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(shared, s.cfg.InflightTimeout)
		defer cancel()
		return run(callCtx)
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Shared {
			sharedFlights.WithLabelValues(endpoint).Inc()
		}
		if r.Err != nil {
			return zero, r.Err
		}
		return clone(r.Val.(V)), nil
	}
}

func cloneSearch(r core.SearchResult) core.SearchResult {
	r.Results = slices.Clone(r.Results)
	return r
}

// APIStatus reports whether an upstream credential is configured.
func (s *Service) APIStatus() core.APIStatus {
	if s.upstream.Configured() {
		return core.APIStatus{Configured: true, Message: "Spoonacular API is configured"}
	}
	return core.APIStatus{
		Configured: false,
		Message:    "Spoonacular API key is not configured. Set SPOONACULAR_API_KEY to enable live recipe data; searches use the local dataset until then.",
	}
}

// TestConnection probes the upstream API with one cheap request. The probe
// counts against the daily quota like any other call.
func (s *Service) TestConnection(ctx context.Context) core.ConnectionResult {
	if !s.upstream.Configured() {
		return core.ConnectionResult{Success: false, Message: "API key not configured"}
	}
	if !s.ledger.CanMakeCall(ctx) {
		return core.ConnectionResult{
			Success: false,
			Message: fmt.Sprintf("Daily API limit of %d calls reached", s.ledger.Limit()),
		}
	}

	result, err := s.upstream.Ping(ctx)
	s.ledger.RecordCall(context.WithoutCancel(ctx), OpTestConnection, err == nil)
	if err != nil {
		return core.ConnectionResult{Success: false, Message: err.Error()}
	}
	return result
}

// UsageStats returns today's ledger view.
func (s *Service) UsageStats(ctx context.Context) usage.Stats {
	return s.ledger.Stats(ctx)
}

// ResetUsage zeroes today's ledger record.
func (s *Service) ResetUsage(ctx context.Context) {
	s.ledger.Reset(ctx)
}

// TimeUntilReset reports how long until the daily quota resets.
func (s *Service) TimeUntilReset() usage.ResetCountdown {
	return s.ledger.TimeUntilReset()
}

// InvalidateSearches drops cached searches whose query contains term,
// ignoring case, and returns how many entries were removed.
func (s *Service) InvalidateSearches(term string) int {
	term = strings.TrimSpace(term)
	if term == "" {
		return 0
	}
	pattern := regexp.MustCompile(`(?i)"query":"[^"]*` + regexp.QuoteMeta(cache.EncodeString(term)))
	n := s.searches.InvalidatePattern(pattern)
	slog.Info("search cache invalidated", "term", term, "removed", n)
	return n
}

// ClearCaches empties every domain cache.
func (s *Service) ClearCaches() {
	s.searches.Clear()
	s.details.Clear()
	s.random.Clear()
	s.ingredients.Clear()
	slog.Info("recipe caches cleared")
}

// CacheStats returns the counters of every domain cache.
func (s *Service) CacheStats() []cache.Stats {
	return []cache.Stats{
		s.searches.Stats(),
		s.details.Stats(),
		s.random.Stats(),
		s.ingredients.Stats(),
	}
}
