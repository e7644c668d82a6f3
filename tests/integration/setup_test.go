//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"recipegate/config"
	"recipegate/internal/app"
)

// TestServerConfig configures how the test server is set up.
type TestServerConfig struct {
	// DBType is either "postgresql" or "mongodb"
	DBType string

	// StorageKey isolates the ledger document between tests
	StorageKey string

	// DailyLimit caps upstream calls (default: 150)
	DailyLimit int

	// AdminKey sets the admin bearer token (empty = open admin routes)
	AdminKey string
}

// TestServerFixture holds test server resources.
type TestServerFixture struct {
	// ServerURL is the base URL of the test server
	ServerURL string

	// App is the running application
	App *app.App

	// Upstream is the mock recipe API
	Upstream *MockUpstream

	// PgPool is the PostgreSQL connection pool (for DB assertions)
	PgPool *pgxpool.Pool

	// MongoDb is the MongoDB database (for DB assertions)
	MongoDb *mongo.Database

	// DBType is the configured database type
	DBType string

	cfg        *config.Config
	cancelFunc context.CancelFunc
}

// SetupTestServer creates a test server with the specified configuration.
func SetupTestServer(t *testing.T, cfg TestServerConfig) *TestServerFixture {
	t.Helper()

	upstream := NewMockUpstream()
	appCfg := buildAppConfig(t, cfg, upstream.URL())

	fixture := &TestServerFixture{
		Upstream: upstream,
		DBType:   cfg.DBType,
		cfg:      appCfg,
	}
	switch cfg.DBType {
	case "postgresql":
		fixture.PgPool = GetPostgreSQLPool()
	case "mongodb":
		fixture.MongoDb = GetMongoDatabase()
	}

	fixture.start(t)
	t.Cleanup(func() { fixture.Shutdown(t) })
	return fixture
}

func (f *TestServerFixture) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(GetTestContext())

	port, err := findAvailablePort()
	require.NoError(t, err, "failed to find available port")
	f.cfg.Server.Port = fmt.Sprintf("%d", port)

	application, err := app.New(ctx, f.cfg)
	require.NoError(t, err, "failed to create app")

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	go func() {
		_ = application.Start(fmt.Sprintf("127.0.0.1:%d", port))
	}()

	require.NoError(t, waitForServer(serverURL+"/health"), "server failed to become healthy")

	f.ServerURL = serverURL
	f.App = application
	f.cancelFunc = cancel
}

// Restart shuts the application down and builds a new one over the same storage.
func (f *TestServerFixture) Restart(t *testing.T) {
	t.Helper()
	f.stopApp(t)
	f.start(t)
}

func (f *TestServerFixture) stopApp(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.App != nil {
		require.NoError(t, f.App.Shutdown(ctx), "failed to shutdown app")
		f.App = nil
	}
	if f.cancelFunc != nil {
		f.cancelFunc()
		f.cancelFunc = nil
	}
}

// Shutdown gracefully shuts down the test server.
func (f *TestServerFixture) Shutdown(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.App != nil {
		_ = f.App.Shutdown(ctx)
		f.App = nil
	}
	if f.Upstream != nil {
		f.Upstream.Close()
	}
	if f.cancelFunc != nil {
		f.cancelFunc()
	}
}

// buildAppConfig creates an application config for testing.
func buildAppConfig(t *testing.T, cfg TestServerConfig, upstreamURL string) *config.Config {
	t.Helper()

	limit := cfg.DailyLimit
	if limit == 0 {
		limit = 150
	}

	appCfg := &config.Config{
		Server: config.ServerConfig{
			AdminKey:      cfg.AdminKey,
			BodySizeLimit: "1M",
		},
		Upstream: config.UpstreamConfig{
			APIKey:  "test-key",
			BaseURL: upstreamURL,
		},
		Usage: config.UsageConfig{
			DailyLimit:        limit,
			WarningThreshold:  0.8,
			CriticalThreshold: 0.95,
			StorageKey:        cfg.StorageKey,
			Timezone:          "UTC",
		},
		Recipes: config.RecipesConfig{
			SearchTTL:           time.Minute,
			DetailsTTL:          time.Minute,
			RandomTTL:           time.Minute,
			IngredientsTTL:      time.Minute,
			DeduplicateInflight: true,
		},
		Fallback: config.FallbackConfig{
			Weights: config.WeightsConfig{
				MatchPoints:              2,
				ProportionalBonus:        5,
				SimplicityBonus:          2,
				SimplicityMaxIngredients: 8,
				MissingPenalty:           1,
			},
		},
		Offline: config.OfflineConfig{Enabled: false},
		Metrics: config.MetricsConfig{Enabled: false},
	}

	switch cfg.DBType {
	case "postgresql":
		appCfg.Storage = config.StorageConfig{
			Type: "postgresql",
			PostgreSQL: config.PostgreSQLStorage{
				URL:      GetPostgreSQLURL(),
				MaxConns: 5,
			},
		}
	case "mongodb":
		appCfg.Storage = config.StorageConfig{
			Type: "mongodb",
			MongoDB: config.MongoDBStorage{
				URL:      GetMongoURL(),
				Database: "recipegate_test",
			},
		}
	default:
		t.Fatalf("unsupported DB type: %s", cfg.DBType)
	}

	return appCfg
}

// waitForServer waits for the server to become healthy.
func waitForServer(healthURL string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for i := 0; i < 50; i++ {
		resp, err := client.Get(healthURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not become healthy within timeout")
}

// findAvailablePort finds an available TCP port on loopback.
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = listener.Close() }()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// MockUpstream is a mock recipe API for testing.
type MockUpstream struct {
	server *httptest.Server
	calls  atomic.Int64
}

// NewMockUpstream creates a new mock upstream.
func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-API-Quota-Left", "99")

		switch {
		case r.URL.Path == "/recipes/complexSearch":
			query := r.URL.Query().Get("query")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results":      []map[string]any{{"id": 101, "title": "Upstream " + query}},
				"offset":       0,
				"number":       1,
				"totalResults": 1,
			})
		case strings.HasSuffix(r.URL.Path, "/information"):
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 101, "title": "Upstream Detail"})
		case r.URL.Path == "/recipes/random":
			_ = json.NewEncoder(w).Encode(map[string]any{"recipes": []map[string]any{{"id": 7, "title": "Random"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	return m
}

// URL returns the server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Calls returns the number of requests the upstream has received.
func (m *MockUpstream) Calls() int {
	return int(m.calls.Load())
}

// Close shuts down the server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// getJSON issues a GET and decodes the JSON body.
func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}
