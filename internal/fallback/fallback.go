// Package fallback answers recipe queries from a catalog bundled into the
// binary. It is used when the upstream API is not configured or has refused a
// call for quota reasons, and for pantry-style ingredient matching.
package fallback

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"recipegate/internal/core"
)

//go:embed dataset.json
var datasetJSON []byte

const defaultNumber = 10

// Weights tunes ingredient match scoring.
type Weights struct {
	// MatchPoints is awarded per user ingredient found in a recipe
	MatchPoints float64 `yaml:"match_points"`
	// ProportionalBonus is scaled by matched/total user ingredients
	ProportionalBonus float64 `yaml:"proportional_bonus"`
	// SimplicityBonus is awarded to recipes with few ingredients
	SimplicityBonus float64 `yaml:"simplicity_bonus"`
	// SimplicityMaxIngredients is the largest ingredient count that earns the simplicity bonus
	SimplicityMaxIngredients int `yaml:"simplicity_max_ingredients"`
	// MissingPenalty is subtracted per non-essential recipe ingredient the user lacks
	MissingPenalty float64 `yaml:"missing_penalty"`
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		MatchPoints:              2,
		ProportionalBonus:        5,
		SimplicityBonus:          2,
		SimplicityMaxIngredients: 8,
		MissingPenalty:           1,
	}
}

// Matcher searches and ranks the bundled catalog. It never mutates its
// catalog, so a single Matcher may be shared between goroutines.
type Matcher struct {
	recipes  []core.RecipeDetail
	byID     map[int]int
	weights  Weights
	synonyms map[string][]string
}

// Parse decodes a catalog document.
func Parse(raw []byte) ([]core.RecipeDetail, error) {
	var recipes []core.RecipeDetail
	if err := json.Unmarshal(raw, &recipes); err != nil {
		return nil, fmt.Errorf("parsing recipe catalog JSON: %w", err)
	}

	seen := make(map[int]struct{}, len(recipes))
	for _, r := range recipes {
		if r.ID == 0 || strings.TrimSpace(r.Title) == "" {
			return nil, fmt.Errorf("catalog recipe %d %q: id and title are required", r.ID, r.Title)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("catalog recipe id %d is duplicated", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return recipes, nil
}

// NewDefault builds a Matcher over the bundled catalog.
func NewDefault(weights Weights) (*Matcher, error) {
	recipes, err := Parse(datasetJSON)
	if err != nil {
		return nil, err
	}
	return New(recipes, weights), nil
}

// New builds a Matcher over recipes. The slice must not be modified afterwards.
func New(recipes []core.RecipeDetail, weights Weights) *Matcher {
	byID := make(map[int]int, len(recipes))
	for i, r := range recipes {
		byID[r.ID] = i
	}
	return &Matcher{
		recipes:  recipes,
		byID:     byID,
		weights:  weights,
		synonyms: buildSynonymIndex(synonymGroups),
	}
}

// Len returns the catalog size.
func (m *Matcher) Len() int {
	return len(m.recipes)
}

// Get returns a catalog recipe by id.
func (m *Matcher) Get(id int) (core.RecipeDetail, bool) {
	i, ok := m.byID[id]
	if !ok {
		return core.RecipeDetail{}, false
	}
	return m.recipes[i], true
}

// Search filters the catalog by a case-insensitive substring of title or
// summary, narrowed by dish type, cuisine and vegetarian/vegan diet.
// An empty query matches everything that passes the filters.
func (m *Matcher) Search(query string, opts core.SearchOptions) core.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))

	var matched []core.Recipe
	for _, r := range m.recipes {
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Summary), q) {
			continue
		}
		if !matchesFilters(r, opts.Type, opts.Cuisine, opts.Diet) {
			continue
		}
		matched = append(matched, r.Recipe)
	}

	number := opts.Number
	if number <= 0 {
		number = defaultNumber
	}
	offset := max(opts.Offset, 0)

	page := []core.Recipe{}
	if offset < len(matched) {
		end := min(offset+number, len(matched))
		page = matched[offset:end]
	}

	return core.SearchResult{
		Results:      page,
		Offset:       offset,
		Number:       number,
		TotalResults: len(matched),
		Source:       core.SourceLocal,
	}
}

// FindByIngredients ranks catalog recipes against the ingredients a user has.
// Recipes scoring zero or less are dropped; the rest are sorted by score
// (ties by title). Ranking 2 orders by fewest missing ingredients first.
func (m *Matcher) FindByIngredients(ingredients []string, opts core.IngredientOptions) []core.ScoredRecipe {
	user := core.NormalizeIngredients(ingredients)
	if len(user) == 0 {
		return []core.ScoredRecipe{}
	}

	category := opts.Category
	diet := ""
	if opts.Vegetarian {
		diet = "vegetarian"
	}

	results := []core.ScoredRecipe{}
	for _, r := range m.recipes {
		if !matchesFilters(r, category, "", diet) {
			continue
		}
		scored := m.score(r, user)
		if scored.Score <= 0 {
			continue
		}
		results = append(results, scored)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if opts.Ranking == 2 && len(a.MissingIngredients) != len(b.MissingIngredients) {
			return len(a.MissingIngredients) < len(b.MissingIngredients)
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Title < b.Title
	})

	number := opts.Number
	if number <= 0 {
		number = defaultNumber
	}
	if len(results) > number {
		results = results[:number]
	}
	return results
}

func (m *Matcher) score(r core.RecipeDetail, user []string) core.ScoredRecipe {
	names := make([]string, 0, len(r.ExtendedIngredients))
	for _, ing := range r.ExtendedIngredients {
		if name := strings.ToLower(strings.TrimSpace(ing.Name)); name != "" {
			names = append(names, name)
		}
	}

	covered := make([]bool, len(names))
	matched := []string{}
	for _, u := range user {
		found := false
		for i, name := range names {
			if m.ingredientMatches(u, name) {
				covered[i] = true
				found = true
			}
		}
		if found {
			matched = append(matched, u)
		}
	}

	var missing []string
	for i, name := range names {
		if !covered[i] && !isEssential(name) {
			missing = append(missing, name)
		}
	}

	w := m.weights
	ratio := float64(len(matched)) / float64(len(user))
	score := w.MatchPoints*float64(len(matched)) + w.ProportionalBonus*ratio
	if len(names) <= w.SimplicityMaxIngredients {
		score += w.SimplicityBonus
	}
	score -= w.MissingPenalty * float64(len(missing))

	return core.ScoredRecipe{
		Recipe:             r.Recipe,
		Score:              score,
		MatchedIngredients: matched,
		MissingIngredients: missing,
		MatchPercentage:    int(ratio*100 + 0.5),
	}
}

// ingredientMatches reports whether the user's ingredient satisfies a
// recipe ingredient. "rice" satisfies "basmati rice" by substring, but a
// broader user term only covers a recipe ingredient through whole words:
// "large eggs" covers "egg", "eggplant" does not.
func (m *Matcher) ingredientMatches(user, recipe string) bool {
	if strings.Contains(recipe, user) || containsWords(user, recipe) {
		return true
	}
	for _, alt := range m.synonyms[user] {
		if strings.Contains(recipe, alt) {
			return true
		}
	}
	return false
}

// containsWords reports whether the words of needle appear in haystack as a
// contiguous run of whole words, allowing a plural "s" or "es" on either side.
func containsWords(haystack, needle string) bool {
	hay := strings.Fields(haystack)
	want := strings.Fields(needle)
	if len(want) == 0 || len(want) > len(hay) {
		return false
	}
	for i := 0; i+len(want) <= len(hay); i++ {
		if slices.EqualFunc(hay[i:i+len(want)], want, sameWord) {
			return true
		}
	}
	return false
}

func sameWord(a, b string) bool {
	if len(a) < len(b) {
		a, b = b, a
	}
	return a == b || a == b+"s" || a == b+"es"
}

func matchesFilters(r core.RecipeDetail, dishType, cuisine, diet string) bool {
	if dishType != "" && !containsFold(r.DishTypes, dishType) {
		return false
	}
	if cuisine != "" {
		ok := false
		for _, c := range strings.Split(cuisine, ",") {
			if containsFold(r.Cuisines, strings.TrimSpace(c)) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, d := range strings.Split(strings.ToLower(diet), ",") {
		switch strings.TrimSpace(d) {
		case "vegetarian":
			if !r.Vegetarian {
				return false
			}
		case "vegan":
			if !r.Vegan {
				return false
			}
		case "gluten free":
			if !r.GlutenFree {
				return false
			}
		}
	}
	return true
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
