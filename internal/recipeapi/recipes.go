package recipeapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"recipegate/internal/core"
)

// Endpoint names as recorded by the usage ledger and metrics.
const (
	EndpointComplexSearch     = "complexSearch"
	EndpointInformation       = "information"
	EndpointRandom            = "random"
	EndpointFindByIngredients = "findByIngredients"
)

// ComplexSearch runs a free-text search with optional filters.
func (c *Client) ComplexSearch(ctx context.Context, query string, opts core.SearchOptions) (core.SearchResult, error) {
	params := opts.Params()
	if query != "" {
		params["query"] = query
	}

	var result core.SearchResult
	err := c.Do(ctx, Request{
		Endpoint: "/recipes/complexSearch",
		Query:    core.EncodeParams(params),
		Name:     EndpointComplexSearch,
	}, &result)
	if err != nil {
		return core.SearchResult{}, err
	}
	if result.Results == nil {
		result.Results = []core.Recipe{}
	}
	result.Source = core.SourceAPI
	return result, nil
}

// Information fetches a full recipe document.
func (c *Client) Information(ctx context.Context, id int) (core.RecipeDetail, error) {
	if id <= 0 {
		return core.RecipeDetail{}, core.NewInvalidRequestError(fmt.Sprintf("invalid recipe id %d", id), nil)
	}

	var detail core.RecipeDetail
	err := c.Do(ctx, Request{
		Endpoint: "/recipes/" + strconv.Itoa(id) + "/information",
		Name:     EndpointInformation,
	}, &detail)
	if err != nil {
		return core.RecipeDetail{}, err
	}
	return detail, nil
}

// Random returns number random recipes, optionally restricted by tags.
func (c *Client) Random(ctx context.Context, number int, tags []string) ([]core.Recipe, error) {
	query := url.Values{}
	if number > 0 {
		query.Set("number", strconv.Itoa(number))
	}
	if len(tags) > 0 {
		query.Set("include-tags", strings.Join(tags, ","))
	}

	var envelope struct {
		Recipes []core.Recipe `json:"recipes"`
	}
	err := c.Do(ctx, Request{
		Endpoint: "/recipes/random",
		Query:    query,
		Name:     EndpointRandom,
	}, &envelope)
	if err != nil {
		return nil, err
	}
	if envelope.Recipes == nil {
		envelope.Recipes = []core.Recipe{}
	}
	return envelope.Recipes, nil
}

type usedIngredient struct {
	Name string `json:"name"`
}

type ingredientMatch struct {
	core.Recipe
	UsedIngredientCount   int              `json:"usedIngredientCount"`
	MissedIngredientCount int              `json:"missedIngredientCount"`
	UsedIngredients       []usedIngredient `json:"usedIngredients"`
	MissedIngredients     []usedIngredient `json:"missedIngredients"`
}

// FindByIngredients asks the API which recipes use the given ingredients.
// Score is the used-ingredient count; the percentage is relative to the
// caller's ingredient list.
func (c *Client) FindByIngredients(ctx context.Context, ingredients []string, opts core.IngredientOptions) ([]core.ScoredRecipe, error) {
	user := core.NormalizeIngredients(ingredients)
	if len(user) == 0 {
		return nil, core.NewInvalidRequestError("at least one ingredient is required", nil)
	}

	params := opts.Params()
	params["ingredients"] = user

	var matches []ingredientMatch
	err := c.Do(ctx, Request{
		Endpoint: "/recipes/findByIngredients",
		Query:    core.EncodeParams(params),
		Name:     EndpointFindByIngredients,
	}, &matches)
	if err != nil {
		return nil, err
	}

	results := make([]core.ScoredRecipe, 0, len(matches))
	for _, m := range matches {
		results = append(results, core.ScoredRecipe{
			Recipe:             m.Recipe,
			Score:              float64(m.UsedIngredientCount),
			MatchedIngredients: names(m.UsedIngredients),
			MissingIngredients: names(m.MissedIngredients),
			MatchPercentage:    int(math.Round(float64(m.UsedIngredientCount) / float64(len(user)) * 100)),
		})
	}
	return results, nil
}

// Ping performs the cheapest real call and reports the remaining quota.
func (c *Client) Ping(ctx context.Context) (core.ConnectionResult, error) {
	resp, err := c.DoRaw(ctx, Request{
		Method:   http.MethodGet,
		Endpoint: "/recipes/random",
		Query:    url.Values{"number": []string{"1"}},
		Name:     EndpointRandom,
	})
	if err != nil {
		return core.ConnectionResult{Success: false, Message: err.Error()}, err
	}

	remaining := resp.Header.Get(QuotaLeftHeader)
	if remaining == "" {
		remaining = "unknown"
	}
	return core.ConnectionResult{
		Success:        true,
		Message:        "Connected to the recipe API",
		RemainingQuota: remaining,
	}, nil
}

func names(in []usedIngredient) []string {
	out := make([]string, 0, len(in))
	for _, i := range in {
		out = append(out, i.Name)
	}
	return out
}
