// Package config provides configuration management for the application.
//
// Values are resolved in this order, later sources winning:
// built-in defaults, config.yaml (with ${VAR} and ${VAR:-default}
// placeholders expanded), a .env file, and finally explicit environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Usage    UsageConfig    `yaml:"usage"`
	Recipes  RecipesConfig  `yaml:"recipes"`
	Fallback FallbackConfig `yaml:"fallback"`
	Storage  StorageConfig  `yaml:"storage"`
	Offline  OfflineConfig  `yaml:"offline"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// AdminKey protects the /admin routes with a bearer token. Empty disables them.
	AdminKey string `yaml:"admin_key"`
	// BodySizeLimit caps request bodies, e.g. "1M" (default: 1M)
	BodySizeLimit string `yaml:"body_size_limit"`
}

// UpstreamConfig configures the remote recipe API
type UpstreamConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	MaxRetries int    `yaml:"max_retries"`
	// CircuitBreakerFailures opens the breaker after this many consecutive
	// transport or 5xx failures. 0 keeps the default of 5; a negative value
	// disables the breaker.
	CircuitBreakerFailures int           `yaml:"circuit_breaker_failures"`
	CircuitBreakerTimeout  time.Duration `yaml:"circuit_breaker_timeout"`
}

// UsageConfig configures the daily usage ledger
type UsageConfig struct {
	DailyLimit        int     `yaml:"daily_limit"`
	WarningThreshold  float64 `yaml:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	StorageKey        string  `yaml:"storage_key"`
	// Timezone names the IANA zone whose midnight starts a new ledger day (default: Local)
	Timezone string `yaml:"timezone"`
}

// RecipesConfig holds the per-domain cache policy
type RecipesConfig struct {
	SearchTTL           time.Duration `yaml:"search_ttl"`
	DetailsTTL          time.Duration `yaml:"details_ttl"`
	RandomTTL           time.Duration `yaml:"random_ttl"`
	IngredientsTTL      time.Duration `yaml:"ingredients_ttl"`
	SearchCapacity      int           `yaml:"search_capacity"`
	DetailsCapacity     int           `yaml:"details_capacity"`
	RandomCapacity      int           `yaml:"random_capacity"`
	IngredientsCapacity int           `yaml:"ingredients_capacity"`
	DeduplicateInflight bool          `yaml:"deduplicate_inflight"`
}

// FallbackConfig configures the bundled dataset matcher
type FallbackConfig struct {
	// DatasetPath replaces the embedded dataset when set
	DatasetPath string        `yaml:"dataset_path"`
	Weights     WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the ingredient scoring constants
type WeightsConfig struct {
	MatchPoints              float64 `yaml:"match_points"`
	ProportionalBonus        float64 `yaml:"proportional_bonus"`
	SimplicityBonus          float64 `yaml:"simplicity_bonus"`
	SimplicityMaxIngredients int     `yaml:"simplicity_max_ingredients"`
	MissingPenalty           float64 `yaml:"missing_penalty"`
}

// StorageConfig selects the backend that persists the usage ledger
type StorageConfig struct {
	// Type is one of memory, file, sqlite, postgresql, mongodb, redis (default: file)
	Type       string            `yaml:"type"`
	File       FileStorage       `yaml:"file"`
	SQLite     SQLiteStorage     `yaml:"sqlite"`
	PostgreSQL PostgreSQLStorage `yaml:"postgresql"`
	MongoDB    MongoDBStorage    `yaml:"mongodb"`
	Redis      RedisStorage      `yaml:"redis"`
}

// FileStorage holds file backend configuration
type FileStorage struct {
	Dir string `yaml:"dir"`
}

// SQLiteStorage holds SQLite backend configuration
type SQLiteStorage struct {
	Path string `yaml:"path"`
}

// PostgreSQLStorage holds PostgreSQL backend configuration
type PostgreSQLStorage struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBStorage holds MongoDB backend configuration
type MongoDBStorage struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// RedisStorage holds Redis backend configuration
type RedisStorage struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// OfflineConfig configures the offline asset cache
type OfflineConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Version       int    `yaml:"version"`
	Store         string `yaml:"store"`
	SQLitePath    string `yaml:"sqlite_path"`
	MaxAssetBytes int64  `yaml:"max_asset_bytes"`
}

// LogConfig configures the process logger
type LogConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `yaml:"level"`
	// Format is auto, text or json. auto picks text on a terminal.
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// configPaths are tried in order; the first one that exists is used.
var configPaths = []string{"config.yaml", "config/config.yaml"}

// buildDefaultConfig returns the configuration used when nothing else is set.
func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: "1M",
		},
		Upstream: UpstreamConfig{
			BaseURL:                "https://api.spoonacular.com",
			CircuitBreakerFailures: 5,
			CircuitBreakerTimeout:  30 * time.Second,
		},
		Usage: UsageConfig{
			DailyLimit:        150,
			WarningThreshold:  0.8,
			CriticalThreshold: 0.95,
			StorageKey:        "recipegate:api-usage",
		},
		Recipes: RecipesConfig{
			SearchTTL:           15 * time.Minute,
			DetailsTTL:          60 * time.Minute,
			RandomTTL:           5 * time.Minute,
			IngredientsTTL:      15 * time.Minute,
			SearchCapacity:      100,
			DetailsCapacity:     200,
			RandomCapacity:      20,
			IngredientsCapacity: 100,
			DeduplicateInflight: true,
		},
		Fallback: FallbackConfig{
			Weights: WeightsConfig{
				MatchPoints:              2,
				ProportionalBonus:        5,
				SimplicityBonus:          2,
				SimplicityMaxIngredients: 8,
				MissingPenalty:           1,
			},
		},
		Storage: StorageConfig{
			Type:       "file",
			File:       FileStorage{Dir: ".cache/recipegate"},
			SQLite:     SQLiteStorage{Path: ".cache/recipegate.db"},
			PostgreSQL: PostgreSQLStorage{MaxConns: 10},
			MongoDB:    MongoDBStorage{Database: "recipegate"},
			Redis:      RedisStorage{Prefix: "recipegate:"},
		},
		Offline: OfflineConfig{
			Enabled:       true,
			Version:       1,
			Store:         "memory",
			SQLitePath:    ".cache/recipegate-offline.db",
			MaxAssetBytes: 5 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// Load reads configuration from defaults, config.yaml, .env and the environment.
func Load() (*Config, error) {
	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := buildDefaultConfig()

	path := os.Getenv("RECIPEGATE_CONFIG")
	if path == "" {
		for _, p := range configPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders. A variable
// that is unset or empty takes the default; without a default the
// placeholder is left untouched.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		if v := os.Getenv(groups[1]); v != "" {
			return v
		}
		if groups[2] != "" {
			return groups[3]
		}
		return match
	})
}

// applyEnvOverrides copies explicitly set environment variables onto cfg.
func applyEnvOverrides(cfg *Config) error {
	setString("PORT", &cfg.Server.Port)
	setString("RECIPEGATE_ADMIN_KEY", &cfg.Server.AdminKey)
	setString("BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)

	setString("SPOONACULAR_API_KEY", &cfg.Upstream.APIKey)
	setString("SPOONACULAR_BASE_URL", &cfg.Upstream.BaseURL)

	setString("USAGE_TIMEZONE", &cfg.Usage.Timezone)
	setString("USAGE_STORAGE_KEY", &cfg.Usage.StorageKey)

	setString("FALLBACK_DATASET_PATH", &cfg.Fallback.DatasetPath)

	setString("STORAGE_TYPE", &cfg.Storage.Type)
	setString("STORAGE_FILE_DIR", &cfg.Storage.File.Dir)
	setString("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	setString("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	setString("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)
	setString("REDIS_URL", &cfg.Storage.Redis.URL)
	setString("REDIS_PREFIX", &cfg.Storage.Redis.Prefix)

	setString("OFFLINE_STORE", &cfg.Offline.Store)
	setString("OFFLINE_SQLITE_PATH", &cfg.Offline.SQLitePath)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(setInt("UPSTREAM_MAX_RETRIES", &cfg.Upstream.MaxRetries))
	collect(setInt("UPSTREAM_CIRCUIT_BREAKER_FAILURES", &cfg.Upstream.CircuitBreakerFailures))
	collect(setInt("USAGE_DAILY_LIMIT", &cfg.Usage.DailyLimit))
	collect(setInt("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns))
	collect(setInt("OFFLINE_VERSION", &cfg.Offline.Version))
	collect(setBool("OFFLINE_ENABLED", &cfg.Offline.Enabled))
	collect(setBool("METRICS_ENABLED", &cfg.Metrics.Enabled))
	collect(setBool("RECIPES_DEDUPLICATE_INFLIGHT", &cfg.Recipes.DeduplicateInflight))
	collect(setDuration("RECIPES_SEARCH_TTL", &cfg.Recipes.SearchTTL))
	collect(setDuration("RECIPES_DETAILS_TTL", &cfg.Recipes.DetailsTTL))

	return errors.Join(errs...)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

var validStorageTypes = map[string]struct{}{
	"memory": {}, "file": {}, "sqlite": {}, "postgresql": {}, "mongodb": {}, "redis": {},
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Usage.DailyLimit <= 0 {
		errs = append(errs, fmt.Errorf("usage.daily_limit must be positive, got %d", c.Usage.DailyLimit))
	}
	w, cr := c.Usage.WarningThreshold, c.Usage.CriticalThreshold
	if w <= 0 || w > 1 || cr <= 0 || cr > 1 || w > cr {
		errs = append(errs, fmt.Errorf("usage thresholds must satisfy 0 < warning <= critical <= 1, got %.2f and %.2f", w, cr))
	}
	if c.Usage.Timezone != "" {
		if _, err := time.LoadLocation(c.Usage.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("usage.timezone: %w", err))
		}
	}

	for name, n := range map[string]int{
		"search_capacity":      c.Recipes.SearchCapacity,
		"details_capacity":     c.Recipes.DetailsCapacity,
		"random_capacity":      c.Recipes.RandomCapacity,
		"ingredients_capacity": c.Recipes.IngredientsCapacity,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("recipes.%s must not be negative, got %d", name, n))
		}
	}

	if _, ok := validStorageTypes[c.Storage.Type]; !ok {
		errs = append(errs, fmt.Errorf("unknown storage.type %q", c.Storage.Type))
	}
	switch c.Storage.Type {
	case "postgresql":
		if c.Storage.PostgreSQL.URL == "" {
			errs = append(errs, errors.New("storage.postgresql.url is required"))
		}
	case "mongodb":
		if c.Storage.MongoDB.URL == "" {
			errs = append(errs, errors.New("storage.mongodb.url is required"))
		}
	case "redis":
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required"))
		}
	}

	if c.Offline.Enabled && c.Offline.Store != "memory" && c.Offline.Store != "sqlite" {
		errs = append(errs, fmt.Errorf("unknown offline.store %q", c.Offline.Store))
	}
	if c.Offline.Version < 0 {
		errs = append(errs, fmt.Errorf("offline.version must not be negative, got %d", c.Offline.Version))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if err := ValidateBodySizeLimit(c.Server.BodySizeLimit); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

const (
	minBodySize = 1 << 10
	maxBodySize = 100 << 20
)

var bodySizePattern = regexp.MustCompile(`^(\d+)([KMG])?B?$`)

// ValidateBodySizeLimit checks a size such as "512K" or "10MB".
// Empty is valid and means the default.
func ValidateBodySizeLimit(s string) error {
	_, err := ParseBodySizeLimit(s)
	return err
}

// ParseBodySizeLimit converts a limit such as "512K" or "10M" to bytes.
// An empty string yields 0, meaning the server default.
func ParseBodySizeLimit(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil || (m[2] == "" && strings.HasSuffix(s, "B")) {
		return 0, fmt.Errorf("invalid body size limit %q (expected e.g. 512K or 10M)", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid body size limit %q: %w", s, err)
	}
	switch m[2] {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	case "G":
		n <<= 30
	}
	if n < minBodySize || n > maxBodySize {
		return 0, fmt.Errorf("body size limit %q must be between 1K and 100M", s)
	}
	return n, nil
}
