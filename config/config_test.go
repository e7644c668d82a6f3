package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Upstream.APIKey)
	assert.Equal(t, "https://api.spoonacular.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 150, cfg.Usage.DailyLimit)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, 15*time.Minute, cfg.Recipes.SearchTTL)
	assert.True(t, cfg.Recipes.DeduplicateInflight)
	assert.True(t, cfg.Offline.Enabled)
	assert.Equal(t, 2.0, cfg.Fallback.Weights.MatchPoints)
}

func TestLoad_YAMLWithPlaceholders(t *testing.T) {
	const configContent = `
server:
  port: "${TEST_PORT_DEFAULTS:-9999}"
upstream:
  api_key: "${TEST_KEY_DEFAULTS:-default-key}"
usage:
  daily_limit: 40
recipes:
  search_ttl: 10m
  deduplicate_inflight: false
fallback:
  weights:
    missing_penalty: 1.5
`

	t.Run("UseDefaultValue", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile("config.yaml", []byte(configContent), 0o644))
		t.Setenv("TEST_PORT_DEFAULTS", "")
		t.Setenv("TEST_KEY_DEFAULTS", "")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Server.Port)
		assert.Equal(t, "default-key", cfg.Upstream.APIKey)
		assert.Equal(t, 40, cfg.Usage.DailyLimit)
		assert.Equal(t, 10*time.Minute, cfg.Recipes.SearchTTL)
		assert.False(t, cfg.Recipes.DeduplicateInflight)
		assert.Equal(t, 1.5, cfg.Fallback.Weights.MissingPenalty)
		assert.Equal(t, 2.0, cfg.Fallback.Weights.MatchPoints, "unset keys keep their defaults")
		assert.Equal(t, time.Hour, cfg.Recipes.DetailsTTL)
	})

	t.Run("OverrideDefaultValue", func(t *testing.T) {
		clearEnv(t)
		t.Chdir(t.TempDir())
		require.NoError(t, os.WriteFile("config.yaml", []byte(configContent), 0o644))
		t.Setenv("TEST_PORT_DEFAULTS", "1111")
		t.Setenv("TEST_KEY_DEFAULTS", "real-key")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "1111", cfg.Server.Port)
		assert.Equal(t, "real-key", cfg.Upstream.APIKey)
	})

	t.Run("EnvironmentBeatsFile", func(t *testing.T) {
		clearEnv(t)
		t.Chdir(t.TempDir())
		require.NoError(t, os.WriteFile("config.yaml", []byte(configContent), 0o644))
		t.Setenv("USAGE_DAILY_LIMIT", "75")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 75, cfg.Usage.DailyLimit)
	})
}

func TestLoad_ExplicitConfigPath(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\n"), 0o644))
	t.Setenv("RECIPEGATE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("config.yaml", []byte("usage: [not, a, map"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("PORT=7070\nSPOONACULAR_API_KEY=from-dotenv\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "from-dotenv", cfg.Upstream.APIKey)
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("PORT=7070\nSPOONACULAR_API_KEY=from-dotenv\n"), 0o644))
	t.Setenv("PORT", "9999")
	t.Setenv("SPOONACULAR_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Upstream.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"zero daily limit", func(c *Config) { c.Usage.DailyLimit = 0 }, "daily_limit"},
		{"warning above critical", func(c *Config) { c.Usage.WarningThreshold = 0.99 }, "thresholds"},
		{"threshold above one", func(c *Config) { c.Usage.CriticalThreshold = 1.5 }, "thresholds"},
		{"unknown timezone", func(c *Config) { c.Usage.Timezone = "Mars/Olympus" }, "timezone"},
		{"negative capacity", func(c *Config) { c.Recipes.SearchCapacity = -1 }, "search_capacity"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "etcd" }, "storage.type"},
		{"postgres without url", func(c *Config) { c.Storage.Type = "postgresql" }, "postgresql.url"},
		{"mongodb without url", func(c *Config) { c.Storage.Type = "mongodb" }, "mongodb.url"},
		{"redis without url", func(c *Config) { c.Storage.Type = "redis" }, "redis.url"},
		{"unknown offline store", func(c *Config) { c.Offline.Store = "s3" }, "offline.store"},
		{"disabled offline ignores store", func(c *Config) { c.Offline.Enabled = false; c.Offline.Store = "s3" }, ""},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad body size", func(c *Config) { c.Server.BodySizeLimit = "lots" }, "body size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateBodySizeLimit(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"empty string is valid", "", false},
		{"plain number", "1048576", false},
		{"kilobytes lowercase", "100k", false},
		{"kilobytes with B suffix", "100KB", false},
		{"megabytes uppercase", "10M", false},
		{"whitespace trimmed", "  10M  ", false},
		{"minimum valid (1KB)", "1K", false},
		{"maximum valid (100MB)", "100M", false},
		{"invalid format with letters", "abc", true},
		{"invalid unit", "10X", true},
		{"negative number", "-10M", true},
		{"decimal number", "10.5M", true},
		{"empty unit with B", "10B", true},
		{"below minimum (100 bytes)", "100", true},
		{"above maximum (200MB)", "200M", true},
		{"above maximum (1GB)", "1G", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBodySizeLimit(tt.input)
			if tt.expectError && err == nil {
				t.Errorf("expected error for input %q, got nil", tt.input)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for input %q: %v", tt.input, err)
			}
		})
	}
}

func TestParseBodySizeLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"1K", 1 << 10},
		{"512k", 512 << 10},
		{"10MB", 10 << 20},
		{"2048", 2048},
	}
	for _, tt := range tests {
		got, err := ParseBodySizeLimit(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := ParseBodySizeLimit("1G")
	assert.Error(t, err)
}
