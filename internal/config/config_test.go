package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allycheck/internal/mcp"
	"allycheck/internal/perception"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "ALLYCHECK_MODEL_VARIANT", "ALLYCHECK_STORE_DSN",
		"ALLYCHECK_REDIS_URL", "ALLYCHECK_CONTROL_URL", "ALLYCHECK_LOG_LEVEL",
		"ALLYCHECK_ADDR", "ALLYCHECK_MAX_CONCURRENT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Engine.MaxIterations)
	assert.Equal(t, 50000, cfg.Engine.ChunkSize)
	assert.Equal(t, 60*time.Second, cfg.GetHostLimit())
	assert.Equal(t, 10*time.Second, cfg.GetSafetyBuffer())
	assert.Equal(t, 0.8, cfg.Dedup.TitleThreshold)
	assert.Equal(t, 0.7, cfg.Dedup.DescriptionThreshold)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "allycheck.yaml")
	data := `
model:
  variant: pro
engine:
  chunk_size: 20000
dedup:
  title_threshold: 0.9
mcp_servers:
  - id: docs
    enabled: true
    protocol: stdio
    command: docs-server
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pro", cfg.Model.Variant)
	assert.Equal(t, "gemini", cfg.Model.Provider, "unset fields keep defaults")
	assert.Equal(t, 20000, cfg.Engine.ChunkSize)
	assert.Equal(t, 0.9, cfg.Dedup.TitleThreshold)
	assert.Equal(t, 0.7, cfg.Dedup.DescriptionThreshold)
	require.Len(t, cfg.MCP, 1)
	assert.Equal(t, "docs-server", cfg.MCP[0].Command)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unterminated"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("ALLYCHECK_STORE_DSN", "postgres://localhost/ally")
	t.Setenv("ALLYCHECK_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLYCHECK_MAX_CONCURRENT", "9")
	t.Setenv("ALLYCHECK_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", cfg.Model.APIKey)
	assert.Equal(t, "postgres://localhost/ally", cfg.Store.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Research.RedisURL)
	assert.Equal(t, 9, cfg.Server.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_API_KEY=from-dotenv\n"), 0600))

	// godotenv does not override variables that are already set, and
	// t.Setenv("", ...) counts as set, so unset it for this test.
	os.Unsetenv("GEMINI_API_KEY")
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model.APIKey)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "allycheck.yaml")
	cfg := DefaultConfig()
	cfg.Model.Variant = "flash-lite"
	cfg.Store.DSN = "audits.db"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Model, loaded.Model)
	assert.Equal(t, cfg.Engine, loaded.Engine)
	assert.Equal(t, cfg.Dedup, loaded.Dedup)
	assert.Equal(t, cfg.Store, loaded.Store)
	assert.Equal(t, cfg.Server, loaded.Server)
	assert.Equal(t, cfg.Browser.ViewportWidth, loaded.Browser.ViewportWidth)
	assert.Empty(t, loaded.MCP)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "openai" }, "model"},
		{"unknown variant", func(c *Config) { c.Model.Variant = "ultra" }, "model"},
		{"zero iterations", func(c *Config) { c.Engine.MaxIterations = 0 }, "engine.max_iterations"},
		{"tiny chunks", func(c *Config) { c.Engine.ChunkSize = 10 }, "engine.chunk_size"},
		{"buffer exceeds limit", func(c *Config) { c.Engine.SafetyBuffer = "90s" }, "engine.safety_buffer"},
		{"bad duration", func(c *Config) { c.Engine.HostLimit = "soon" }, "engine.host_limit"},
		{"threshold above one", func(c *Config) { c.Dedup.TitleThreshold = 1.5 }, "dedup.title_threshold"},
		{"zero threshold", func(c *Config) { c.Dedup.DescriptionThreshold = 0 }, "dedup.description_threshold"},
		{"no concurrency", func(c *Config) { c.Server.MaxConcurrent = 0 }, "server.max_concurrent"},
		{"mcp without id", func(c *Config) {
			c.MCP = []mcp.ServerConfig{{Protocol: "stdio", Command: "x"}}
		}, "mcp_servers[0].id"},
		{"mcp duplicate id", func(c *Config) {
			c.MCP = []mcp.ServerConfig{{ID: "a", Protocol: "stdio", Command: "x"}, {ID: "a", Protocol: "stdio", Command: "y"}}
		}, "mcp_servers[1].id"},
		{"mcp http without url", func(c *Config) {
			c.MCP = []mcp.ServerConfig{{ID: "a", Protocol: "http"}}
		}, "mcp_servers[0].base_url"},
		{"mcp bad protocol", func(c *Config) {
			c.MCP = []mcp.ServerConfig{{ID: "a", Protocol: "smoke-signal"}}
		}, "mcp_servers[0].protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateModelErrorUnwraps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Provider = "openai"
	err := cfg.Validate()
	assert.True(t, errors.Is(err, perception.ErrUnsupportedProvider))
}

func TestRequireAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireAPIKey()
	require.Error(t, err)
	assert.True(t, errors.Is(err, perception.ErrMissingAPIKey))
	assert.True(t, strings.Contains(err.Error(), "GEMINI_API_KEY"))

	cfg.Model.APIKey = "k"
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 40*time.Second, cfg.GetModelTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetStoreTimeout())
	assert.Equal(t, time.Hour, cfg.GetCacheTTL())
	assert.Equal(t, 15*time.Second, cfg.GetReadTimeout())
	assert.Equal(t, 75*time.Second, cfg.GetWriteTimeout())

	cfg.Engine.StoreTimeout = "-3s"
	assert.Equal(t, 5*time.Second, cfg.GetStoreTimeout(), "non-positive durations fall back")
}

func TestWatchReloadsValidChanges(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "allycheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  variant: flash\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- watch(ctx, path, 20*time.Millisecond, func(c *Config) { reloaded <- c }) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// Invalid content is skipped.
	require.NoError(t, os.WriteFile(path, []byte("model:\n  variant: ultra\n"), 0644))
	time.Sleep(150 * time.Millisecond)
	select {
	case c := <-reloaded:
		t.Fatalf("invalid config was delivered: %+v", c.Model)
	default:
	}

	require.NoError(t, os.WriteFile(path, []byte("model:\n  variant: pro\n"), 0644))
	select {
	case c := <-reloaded:
		assert.Equal(t, "pro", c.Model.Variant)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after a valid change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "gone", "allycheck.yaml"), func(*Config) {})
	assert.Error(t, err)
}
