package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"allycheck/internal/mcp"
	"allycheck/internal/perception"
)

// ConfigurationError is an invalid or missing setting. It is raised before
// any network call is made.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Validate checks the configuration. It does not require an API key; see
// RequireAPIKey. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := perception.ResolveModel(c.Model.Provider, c.Model.Variant); err != nil {
		errs = append(errs, &ConfigurationError{Field: "model", Message: "cannot resolve model", Err: err})
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		add("model.temperature", "must be within [0, 2], got %v", c.Model.Temperature)
	}
	if c.Model.MaxOutputTokens < 0 {
		add("model.max_output_tokens", "must not be negative")
	}

	if c.Engine.MaxIterations < 1 {
		add("engine.max_iterations", "must be at least 1, got %d", c.Engine.MaxIterations)
	}
	if c.Engine.ChunkSize < 1000 {
		add("engine.chunk_size", "must be at least 1000 bytes, got %d", c.Engine.ChunkSize)
	}
	for field, v := range map[string]string{
		"engine.host_limit":    c.Engine.HostLimit,
		"engine.safety_buffer": c.Engine.SafetyBuffer,
		"model.timeout":        c.Model.Timeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			add(field, "invalid duration %q", v)
		}
	}
	if c.GetSafetyBuffer() >= c.GetHostLimit() {
		add("engine.safety_buffer", "must be shorter than host_limit (%v >= %v)", c.GetSafetyBuffer(), c.GetHostLimit())
	}

	for field, v := range map[string]float64{
		"dedup.title_threshold":       c.Dedup.TitleThreshold,
		"dedup.description_threshold": c.Dedup.DescriptionThreshold,
	} {
		if v <= 0 || v > 1 {
			add(field, "must be within (0, 1], got %v", v)
		}
	}

	if c.Server.MaxConcurrent < 1 {
		add("server.max_concurrent", "must be at least 1")
	}

	seen := make(map[string]bool)
	for i, s := range c.MCP {
		field := fmt.Sprintf("mcp_servers[%d]", i)
		if strings.TrimSpace(s.ID) == "" {
			add(field+".id", "is required")
			continue
		}
		if seen[s.ID] {
			add(field+".id", "duplicate server id %q", s.ID)
		}
		seen[s.ID] = true
		switch mcp.Protocol(s.Protocol) {
		case mcp.ProtocolHTTP:
			if s.BaseURL == "" {
				add(field+".base_url", "is required for http servers")
			}
		case mcp.ProtocolStdio:
			if s.Command == "" {
				add(field+".command", "is required for stdio servers")
			}
		default:
			add(field+".protocol", "unsupported protocol %q", s.Protocol)
		}
	}

	return errors.Join(errs...)
}

// RequireAPIKey fails when no model API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Model.APIKey) == "" {
		return &ConfigurationError{
			Field:   "model.api_key",
			Message: "not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)",
			Err:     perception.ErrMissingAPIKey,
		}
	}
	return nil
}
