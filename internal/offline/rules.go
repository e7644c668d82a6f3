package offline

import (
	"net/http"
	"path"
	"regexp"
	"strings"
)

// Strategy decides how a request is answered.
type Strategy int

const (
	// CacheFirst serves a stored copy when present and fetches otherwise.
	CacheFirst Strategy = iota
	// NetworkFirst fetches and falls back to the stored copy on failure.
	NetworkFirst
	// StaleWhileRevalidate serves the stored copy and refreshes it in the background.
	StaleWhileRevalidate
)

func (s Strategy) String() string {
	switch s {
	case CacheFirst:
		return "cache-first"
	case NetworkFirst:
		return "network-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	}
	return "unknown"
}

// Rule binds a request matcher to an asset class and strategy.
type Rule struct {
	Class    Class
	Strategy Strategy
	Match    func(*http.Request) bool
}

var (
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".avif": {},
	}
	shellExtensions = map[string]struct{}{
		".html": {}, ".css": {}, ".js": {}, ".webmanifest": {}, ".ico": {}, ".woff2": {},
	}
	recipeInformationPath = regexp.MustCompile(`^/recipes/\d+/information$`)
)

// DefaultRules returns the standard classification. Rules are tried in order.
func DefaultRules(apiHost string) []Rule {
	return []Rule{
		{
			Class:    ClassImages,
			Strategy: CacheFirst,
			Match: func(r *http.Request) bool {
				_, ok := imageExtensions[strings.ToLower(path.Ext(r.URL.Path))]
				return ok || strings.HasPrefix(r.URL.Path, "/recipeImages/")
			},
		},
		{
			Class:    ClassRecipes,
			Strategy: CacheFirst,
			Match: func(r *http.Request) bool {
				return r.URL.Hostname() == apiHost && recipeInformationPath.MatchString(r.URL.Path)
			},
		},
		{
			Class:    ClassAPI,
			Strategy: NetworkFirst,
			Match: func(r *http.Request) bool {
				return r.URL.Hostname() == apiHost
			},
		},
		{
			Class:    ClassShell,
			Strategy: StaleWhileRevalidate,
			Match: func(r *http.Request) bool {
				if r.URL.Path == "" || r.URL.Path == "/" {
					return true
				}
				_, ok := shellExtensions[strings.ToLower(path.Ext(r.URL.Path))]
				return ok
			},
		},
	}
}

func matchRule(rules []Rule, req *http.Request) (Rule, bool) {
	for _, rule := range rules {
		if rule.Match(req) {
			return rule, true
		}
	}
	return Rule{}, false
}
