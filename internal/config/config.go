// Package config loads allycheck configuration from YAML, .env files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"allycheck/internal/browser"
	"allycheck/internal/dedup"
	"allycheck/internal/mcp"
)

// Config holds all allycheck configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Model     ModelConfig        `yaml:"model"`
	Engine    EngineConfig       `yaml:"engine"`
	Dedup     dedup.Deduplicator `yaml:"dedup"`
	Browser   browser.Config     `yaml:"browser"`
	Research  ResearchConfig     `yaml:"research"`
	Documents DocumentsConfig    `yaml:"documents"`
	Store     StoreConfig        `yaml:"store"`
	Server    ServerConfig       `yaml:"server"`
	MCP       []mcp.ServerConfig `yaml:"mcp_servers"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ModelConfig configures the model provider.
type ModelConfig struct {
	Provider        string  `yaml:"provider"` // gemini
	Variant         string  `yaml:"variant"`  // flash, pro, flash-lite or a model id
	APIKey          string  `yaml:"api_key"`
	Timeout         string  `yaml:"timeout"` // per call
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// EngineConfig configures the audit pipeline.
type EngineConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	ChunkSize     int    `yaml:"chunk_size"` // bytes
	HostLimit     string `yaml:"host_limit"`
	SafetyBuffer  string `yaml:"safety_buffer"`
	StoreTimeout  string `yaml:"store_timeout"`

	// Tools limits the tools offered to the model during audits. Empty
	// offers every registered tool.
	Tools []string `yaml:"tools,omitempty"`
}

// ResearchConfig configures reference fetching and its cache.
type ResearchConfig struct {
	RedisURL  string `yaml:"redis_url"` // empty keeps the cache in memory
	CacheTTL  string `yaml:"cache_ttl"`
	CacheSize int    `yaml:"cache_size"`
}

// DocumentsConfig configures local document access.
type DocumentsConfig struct {
	Root        string `yaml:"root"`         // extract_document_structure may only read below this
	EvidenceDir string `yaml:"evidence_dir"` // screenshots
}

// StoreConfig configures audit persistence.
type StoreConfig struct {
	DSN string `yaml:"dsn"` // sqlite path, file: URI or postgres:// URL; empty disables
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	ReadTimeout   string `yaml:"read_timeout"`
	WriteTimeout  string `yaml:"write_timeout"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "allycheck",
		Version: "0.3.0",

		Model: ModelConfig{
			Provider:        "gemini",
			Variant:         "flash",
			Timeout:         "40s",
			Temperature:     0.2,
			MaxOutputTokens: 8192,
		},

		Engine: EngineConfig{
			MaxIterations: 5,
			ChunkSize:     50000,
			HostLimit:     "60s",
			SafetyBuffer:  "10s",
			StoreTimeout:  "5s",
		},

		Dedup: dedup.Deduplicator{
			TitleThreshold:       dedup.DefaultTitleThreshold,
			DescriptionThreshold: dedup.DefaultDescriptionThreshold,
		},

		Browser: browser.DefaultConfig(),

		Research: ResearchConfig{
			CacheTTL:  "1h",
			CacheSize: 256,
		},

		Documents: DocumentsConfig{
			Root: ".",
		},

		Server: ServerConfig{
			Addr:          ":8080",
			MaxConcurrent: 4,
			ReadTimeout:   "15s",
			WriteTimeout:  "75s",
			MaxBodyBytes:  4 << 20,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &ConfigurationError{Field: path, Message: "invalid YAML", Err: err}
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins over GOOGLE_API_KEY
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if v := os.Getenv("ALLYCHECK_MODEL_VARIANT"); v != "" {
		c.Model.Variant = v
	}
	if dsn := os.Getenv("ALLYCHECK_STORE_DSN"); dsn != "" {
		c.Store.DSN = dsn
	}
	if url := os.Getenv("ALLYCHECK_REDIS_URL"); url != "" {
		c.Research.RedisURL = url
	}
	if url := os.Getenv("ALLYCHECK_CONTROL_URL"); url != "" {
		c.Browser.ControlURL = url
	}
	if level := os.Getenv("ALLYCHECK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("ALLYCHECK_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if n, err := strconv.Atoi(os.Getenv("ALLYCHECK_MAX_CONCURRENT")); err == nil && n > 0 {
		c.Server.MaxConcurrent = n
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetModelTimeout returns the per-call model timeout.
func (c *Config) GetModelTimeout() time.Duration {
	return parseDuration(c.Model.Timeout, 40*time.Second)
}

// GetHostLimit returns the execution ceiling of the host.
func (c *Config) GetHostLimit() time.Duration {
	return parseDuration(c.Engine.HostLimit, 60*time.Second)
}

// GetSafetyBuffer returns the margin kept below the host limit.
func (c *Config) GetSafetyBuffer() time.Duration {
	return parseDuration(c.Engine.SafetyBuffer, 10*time.Second)
}

// GetStoreTimeout returns the budget of the best-effort persistence write.
func (c *Config) GetStoreTimeout() time.Duration {
	return parseDuration(c.Engine.StoreTimeout, 5*time.Second)
}

// GetCacheTTL returns the reference cache TTL.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Research.CacheTTL, time.Hour)
}

// GetReadTimeout returns the HTTP read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 75*time.Second)
}
