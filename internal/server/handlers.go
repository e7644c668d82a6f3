package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"recipegate/internal/cache"
	"recipegate/internal/core"
	"recipegate/internal/offline"
	"recipegate/internal/usage"
)

// RecipeService is the façade the handlers call. *recipes.Service satisfies it.
type RecipeService interface {
	SearchRecipes(ctx context.Context, query string, opts core.SearchOptions) (*core.SearchResult, error)
	GetRecipeDetails(ctx context.Context, id int) (*core.RecipeDetail, error)
	GetRandomRecipes(ctx context.Context, count int) ([]core.Recipe, error)
	FindRecipesByIngredients(ctx context.Context, ingredients []string, opts core.IngredientOptions) ([]core.ScoredRecipe, error)
	FindLocalRecipesByIngredients(ctx context.Context, ingredients []string, opts core.IngredientOptions) []core.ScoredRecipe
	APIStatus() core.APIStatus
	TestConnection(ctx context.Context) core.ConnectionResult
	UsageStats(ctx context.Context) usage.Stats
	ResetUsage(ctx context.Context)
	TimeUntilReset() usage.ResetCountdown
	InvalidateSearches(term string) int
	ClearCaches()
	CacheStats() []cache.Stats
}

// OfflineControl is the offline cache's command channel. *offline.Controller satisfies it.
type OfflineControl interface {
	Clear(ctx context.Context) error
	CacheRecipe(ctx context.Context, id int) (offline.CachedRecipe, error)
	Info(ctx context.Context) (map[string]int, error)
}

// Handler holds the HTTP handlers
type Handler struct {
	recipes RecipeService
	offline OfflineControl
}

// NewHandler creates a new handler. offline may be nil.
func NewHandler(recipes RecipeService, offline OfflineControl) *Handler {
	return &Handler{
		recipes: recipes,
		offline: offline,
	}
}

// knownSearchParams are bound into SearchOptions fields; anything else
// passes through in SearchOptions.Extra.
var knownSearchParams = map[string]struct{}{
	"query": {}, "number": {}, "offset": {}, "type": {}, "diet": {}, "cuisine": {},
	"intolerances": {}, "equipment": {}, "includeIngredients": {}, "excludeIngredients": {},
	"sort": {}, "sortDirection": {}, "fillIngredients": {}, "addRecipeInformation": {},
	"addRecipeNutrition": {}, "instructionsRequired": {},
}

// IngredientsRequest is the body of the by-ingredients endpoints.
type IngredientsRequest struct {
	Ingredients []string `json:"ingredients"`
	core.IngredientOptions
}

// CacheRecipeRequest is the body of POST /admin/offline/recipes.
type CacheRecipeRequest struct {
	ID int `json:"id"`
}

// Health handles GET /health
func (h *Handler) Health(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// SearchRecipes handles GET /v1/recipes/search
func (h *Handler) SearchRecipes(c *echo.Context) error {
	var opts core.SearchOptions
	if err := c.Bind(&opts); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid search parameters: "+err.Error(), err))
	}
	for key, values := range c.QueryParams() {
		if _, known := knownSearchParams[key]; known || len(values) == 0 {
			continue
		}
		if opts.Extra == nil {
			opts.Extra = make(map[string]string)
		}
		opts.Extra[key] = values[0]
	}

	result, err := h.recipes.SearchRecipes(c.Request().Context(), c.QueryParam("query"), opts)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// RecipeDetails handles GET /v1/recipes/:id
func (h *Handler) RecipeDetails(c *echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("recipe id must be an integer", err))
	}

	detail, err := h.recipes.GetRecipeDetails(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// RandomRecipes handles GET /v1/recipes/random
func (h *Handler) RandomRecipes(c *echo.Context) error {
	number := 0
	if raw := c.QueryParam("number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return handleError(c, core.NewInvalidRequestError("number must be an integer", err))
		}
		number = n
	}

	list, err := h.recipes.GetRandomRecipes(c.Request().Context(), number)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"recipes": list})
}

// FindByIngredients handles POST /v1/recipes/by-ingredients
func (h *Handler) FindByIngredients(c *echo.Context) error {
	var req IngredientsRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	list, err := h.recipes.FindRecipesByIngredients(c.Request().Context(), req.Ingredients, req.IngredientOptions)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": list, "source": core.SourceAPI})
}

// FindLocalByIngredients handles POST /v1/recipes/by-ingredients/local
func (h *Handler) FindLocalByIngredients(c *echo.Context) error {
	var req IngredientsRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if len(core.NormalizeIngredients(req.Ingredients)) == 0 {
		return handleError(c, core.NewInvalidRequestError("at least one ingredient is required", nil))
	}

	list := h.recipes.FindLocalRecipesByIngredients(c.Request().Context(), req.Ingredients, req.IngredientOptions)
	return c.JSON(http.StatusOK, map[string]any{"results": list, "source": core.SourceLocal})
}

// APIStatus handles GET /v1/status
func (h *Handler) APIStatus(c *echo.Context) error {
	return c.JSON(http.StatusOK, h.recipes.APIStatus())
}

// TestConnection handles GET /v1/status/connection
func (h *Handler) TestConnection(c *echo.Context) error {
	return c.JSON(http.StatusOK, h.recipes.TestConnection(c.Request().Context()))
}

// Usage handles GET /v1/usage
func (h *Handler) Usage(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"usage":   h.recipes.UsageStats(c.Request().Context()),
		"resetIn": h.recipes.TimeUntilReset(),
		"caches":  h.recipes.CacheStats(),
	})
}

// ResetUsage handles POST /admin/usage/reset
func (h *Handler) ResetUsage(c *echo.Context) error {
	ctx := c.Request().Context()
	h.recipes.ResetUsage(ctx)
	return c.JSON(http.StatusOK, h.recipes.UsageStats(ctx))
}

// ClearCaches handles DELETE /admin/cache
func (h *Handler) ClearCaches(c *echo.Context) error {
	h.recipes.ClearCaches()
	return c.NoContent(http.StatusNoContent)
}

// InvalidateSearches handles DELETE /admin/cache/searches/:term
func (h *Handler) InvalidateSearches(c *echo.Context) error {
	removed := h.recipes.InvalidateSearches(c.Param("term"))
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

// OfflineClear handles POST /admin/offline/clear
func (h *Handler) OfflineClear(c *echo.Context) error {
	if h.offline == nil {
		return offlineDisabled(c)
	}
	if err := h.offline.Clear(c.Request().Context()); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// OfflineCacheRecipe handles POST /admin/offline/recipes
func (h *Handler) OfflineCacheRecipe(c *echo.Context) error {
	if h.offline == nil {
		return offlineDisabled(c)
	}
	var req CacheRecipeRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.ID <= 0 {
		return handleError(c, core.NewInvalidRequestError("id must be a positive integer", nil))
	}

	cached, err := h.offline.CacheRecipe(c.Request().Context(), req.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, cached)
}

// OfflineInfo handles GET /admin/offline/info
func (h *Handler) OfflineInfo(c *echo.Context) error {
	if h.offline == nil {
		return offlineDisabled(c)
	}
	counts, err := h.offline.Info(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"namespaces": counts})
}

func offlineDisabled(c *echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"type":    "not_found_error",
			"message": "offline cache is disabled",
		},
	})
}

// handleError converts an error to the appropriate HTTP response
func handleError(c *echo.Context, err error) error {
	var recipeErr *core.RecipeError
	if errors.As(err, &recipeErr) {
		return c.JSON(recipeErr.HTTPStatusCode(), recipeErr.ToJSON())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]any{
			"error": map[string]any{
				"type":    "timeout_error",
				"message": err.Error(),
			},
		})
	}

	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
