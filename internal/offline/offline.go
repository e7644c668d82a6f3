// Package offline is the asset cache that sits beneath outbound HTTP calls.
// Requests are classified by URL into asset classes (app shell, recipe pages,
// images, API) and served with a per-class strategy: cache-first,
// network-first or stale-while-revalidate. Each class lives in its own
// versioned namespace so one class can be dropped without touching the others.
package offline

import (
	"fmt"
	"net/http"
	"time"
)

// Class partitions cached assets.
type Class string

const (
	ClassShell   Class = "shell"
	ClassRecipes Class = "recipes"
	ClassImages  Class = "images"
	ClassAPI     Class = "api"
)

// Classes lists every asset class in a stable order.
var Classes = []Class{ClassShell, ClassRecipes, ClassImages, ClassAPI}

// CacheHeader is set on every response the transport serves from its store.
const CacheHeader = "X-Offline-Cache"

// Store types
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds offline cache configuration
type Config struct {
	// Enabled controls whether the transport intercepts requests
	Enabled bool

	// Version is the namespace generation. Bumping it orphans older namespaces,
	// which Activate then deletes.
	Version int

	// Store selects the asset store: "memory" or "sqlite"
	Store string

	// SQLitePath is the database file for the sqlite store
	SQLitePath string

	// APIHost is the upstream API host whose calls use the network-first strategy
	APIHost string

	// MaxAssetBytes caps the size of a single stored body (default: 5 MiB)
	MaxAssetBytes int64
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Version:       1,
		Store:         StoreMemory,
		SQLitePath:    ".cache/recipegate-offline.db",
		APIHost:       "api.spoonacular.com",
		MaxAssetBytes: 5 << 20,
	}
}

// Namespace returns the versioned namespace name for a class.
func Namespace(class Class, version int) string {
	return fmt.Sprintf("%s-v%d", class, version)
}

// KnownNamespaces returns the namespaces that belong to version.
func KnownNamespaces(version int) map[string]struct{} {
	known := make(map[string]struct{}, len(Classes))
	for _, c := range Classes {
		known[Namespace(c, version)] = struct{}{}
	}
	return known
}

// Asset is a stored response.
type Asset struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// storedHeaders are the response headers kept with an asset.
var storedHeaders = []string{
	"Content-Type",
	"Content-Language",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

func filterHeader(h http.Header) http.Header {
	out := make(http.Header, len(storedHeaders))
	for _, name := range storedHeaders {
		if v := h.Values(name); len(v) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), v...)
		}
	}
	return out
}
