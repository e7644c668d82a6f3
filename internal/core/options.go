package core

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// SearchOptions are the recognized search parameters. Filters are passed to
// the upstream API verbatim; Extra carries anything a caller adds that this
// layer does not know about.
type SearchOptions struct {
	Number int `json:"number,omitempty" query:"number"`
	Offset int `json:"offset,omitempty" query:"offset"`

	Type         string `json:"type,omitempty" query:"type"`
	Diet         string `json:"diet,omitempty" query:"diet"`
	Cuisine      string `json:"cuisine,omitempty" query:"cuisine"`
	Intolerances string `json:"intolerances,omitempty" query:"intolerances"`
	Equipment    string `json:"equipment,omitempty" query:"equipment"`

	IncludeIngredients string `json:"includeIngredients,omitempty" query:"includeIngredients"`
	ExcludeIngredients string `json:"excludeIngredients,omitempty" query:"excludeIngredients"`

	Sort          string `json:"sort,omitempty" query:"sort"`
	SortDirection string `json:"sortDirection,omitempty" query:"sortDirection"`

	FillIngredients      bool `json:"fillIngredients,omitempty" query:"fillIngredients"`
	AddRecipeInformation bool `json:"addRecipeInformation,omitempty" query:"addRecipeInformation"`
	AddRecipeNutrition   bool `json:"addRecipeNutrition,omitempty" query:"addRecipeNutrition"`
	InstructionsRequired bool `json:"instructionsRequired,omitempty" query:"instructionsRequired"`

	Extra map[string]string `json:"extra,omitempty" query:"-"`
}

// Params flattens the options into a parameter map, omitting zero values.
// The map feeds both cache keys and upstream query strings.
func (o SearchOptions) Params() map[string]any {
	p := make(map[string]any)
	setInt := func(k string, v int) {
		if v != 0 {
			p[k] = v
		}
	}
	setStr := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	setBool := func(k string, v bool) {
		if v {
			p[k] = true
		}
	}

	setInt("number", o.Number)
	setInt("offset", o.Offset)
	setStr("type", o.Type)
	setStr("diet", o.Diet)
	setStr("cuisine", o.Cuisine)
	setStr("intolerances", o.Intolerances)
	setStr("equipment", o.Equipment)
	setStr("includeIngredients", o.IncludeIngredients)
	setStr("excludeIngredients", o.ExcludeIngredients)
	setStr("sort", o.Sort)
	setStr("sortDirection", o.SortDirection)
	setBool("fillIngredients", o.FillIngredients)
	setBool("addRecipeInformation", o.AddRecipeInformation)
	setBool("addRecipeNutrition", o.AddRecipeNutrition)
	setBool("instructionsRequired", o.InstructionsRequired)
	for k, v := range o.Extra {
		if _, known := p[k]; !known {
			setStr(k, v)
		}
	}
	return p
}

// IngredientOptions tune an ingredient-driven lookup.
type IngredientOptions struct {
	Number       int    `json:"number,omitempty"`
	Ranking      int    `json:"ranking,omitempty"`
	IgnorePantry bool   `json:"ignorePantry,omitempty"`
	Category     string `json:"category,omitempty"`
	Vegetarian   bool   `json:"vegetarian,omitempty"`
}

// Params flattens the options into a parameter map, omitting zero values.
func (o IngredientOptions) Params() map[string]any {
	p := make(map[string]any)
	if o.Number != 0 {
		p["number"] = o.Number
	}
	if o.Ranking != 0 {
		p["ranking"] = o.Ranking
	}
	if o.IgnorePantry {
		p["ignorePantry"] = true
	}
	if o.Category != "" {
		p["category"] = o.Category
	}
	if o.Vegetarian {
		p["vegetarian"] = true
	}
	return p
}

// EncodeParams renders a parameter map as a sorted query string.
func EncodeParams(params map[string]any) url.Values {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := params[k].(type) {
		case string:
			values.Set(k, v)
		case int:
			values.Set(k, strconv.Itoa(v))
		case bool:
			values.Set(k, strconv.FormatBool(v))
		case []string:
			values.Set(k, strings.Join(v, ","))
		}
	}
	return values
}

// NormalizeIngredients trims, lowercases and de-duplicates an ingredient list,
// preserving first-seen order.
func NormalizeIngredients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
