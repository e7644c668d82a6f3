package core

// Source identifies where a result came from.
type Source string

const (
	// SourceAPI marks results fetched from the upstream recipe API.
	SourceAPI Source = "api"
	// SourceCache marks results served from an in-process cache.
	SourceCache Source = "cache"
	// SourceLocal marks results produced by the bundled fallback dataset.
	SourceLocal Source = "local"
)

// Recipe is the summary shape used by search, random and listing views.
type Recipe struct {
	ID             int      `json:"id"`
	Title          string   `json:"title"`
	Image          string   `json:"image,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	ReadyInMinutes int      `json:"readyInMinutes,omitempty"`
	Servings       int      `json:"servings,omitempty"`
	HealthScore    float64  `json:"healthScore,omitempty"`
	Vegetarian     bool     `json:"vegetarian"`
	Cuisines       []string `json:"cuisines,omitempty"`
	DishTypes      []string `json:"dishTypes,omitempty"`
	SourceURL      string   `json:"sourceUrl,omitempty"`
}

// Ingredient is a single line of a recipe's ingredient list.
type Ingredient struct {
	ID       int     `json:"id,omitempty"`
	Name     string  `json:"name"`
	Original string  `json:"original,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Image    string  `json:"image,omitempty"`
}

// InstructionStep is one numbered step of an analyzed instruction block.
type InstructionStep struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

// Instructions groups steps under an optional name ("For the sauce").
type Instructions struct {
	Name  string            `json:"name"`
	Steps []InstructionStep `json:"steps"`
}

// RecipeDetail is the full recipe document shown on a detail page.
type RecipeDetail struct {
	Recipe
	Vegan                bool           `json:"vegan"`
	GlutenFree           bool           `json:"glutenFree"`
	DairyFree            bool           `json:"dairyFree"`
	Diets                []string       `json:"diets,omitempty"`
	Instructions         string         `json:"instructions,omitempty"`
	AnalyzedInstructions []Instructions `json:"analyzedInstructions,omitempty"`
	ExtendedIngredients  []Ingredient   `json:"extendedIngredients,omitempty"`
	PricePerServing      float64        `json:"pricePerServing,omitempty"`
	SourceName           string         `json:"sourceName,omitempty"`
}

// ScoredRecipe is a recipe ranked against a user's ingredient list.
// It is derived per request and never persisted.
type ScoredRecipe struct {
	Recipe
	Score              float64  `json:"score"`
	MatchedIngredients []string `json:"matchedIngredients"`
	MissingIngredients []string `json:"missingIngredients,omitempty"`
	MatchPercentage    int      `json:"matchPercentage"`
}

// SearchResult is the result envelope of a search.
// Source tells the UI whether to show the "using offline dataset" note.
type SearchResult struct {
	Results      []Recipe `json:"results"`
	Offset       int      `json:"offset"`
	Number       int      `json:"number"`
	TotalResults int      `json:"totalResults"`
	Source       Source   `json:"source"`
}

// APIStatus reports whether the upstream API credential is present.
type APIStatus struct {
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}

// ConnectionResult is the outcome of a live connectivity probe.
type ConnectionResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RemainingQuota string `json:"remainingQuota,omitempty"`
}
