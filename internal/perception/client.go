// Package perception talks to the hosted generative model.
//
// ModelClient is the single seam between the conversation driver and a
// provider. GeminiClient implements it on google.golang.org/genai; tests
// use scripted fakes.
package perception

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"allycheck/internal/types"
)

// ModelClient generates one model turn.
type ModelClient interface {
	Generate(ctx context.Context, req *ModelRequest) (*ModelResponse, error)
}

// Role is the author of a history message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one history entry. A model message may carry tool calls; the
// user message that follows it carries their results in the same order.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []types.ToolCall
	ToolResults []ToolResult
}

// ToolResult is a tool outcome sent back to the model. Output is either
// {"result": "..."} or {"error": "..."}.
type ToolResult struct {
	CallID string
	Name   string
	Output map[string]any
}

// UserText returns a plain user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// ModelRequest is one generation request.
type ModelRequest struct {
	Model             string
	SystemInstruction string
	History           []Message
	Tools             []types.ToolDefinition
	Temperature       float32
	MaxOutputTokens   int32
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ModelResponse is one model turn.
type ModelResponse struct {
	Text         string
	ToolCalls    []types.ToolCall
	Usage        Usage
	FinishReason string
}

// HasToolCalls reports whether the model asked for tools.
func (r *ModelResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// ProviderError is a failed provider call. Transient errors (rate limits,
// overload, network) are worth retrying; everything else is not.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (%s, HTTP %d): %s", e.Provider, kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// transientStatus lists HTTP statuses that mean "try again later".
func transientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// Provider names a model provider.
type Provider string

const ProviderGemini Provider = "gemini"

// Model variants.
const (
	VariantFlash     = "flash"
	VariantPro       = "pro"
	VariantFlashLite = "flash-lite"
)

// DefaultVariant is used when a request names none.
const DefaultVariant = VariantFlash

var (
	// ErrUnsupportedProvider is returned for a provider with no client.
	ErrUnsupportedProvider = errors.New("unsupported model provider")

	// ErrUnknownVariant is returned for a variant the provider lacks.
	ErrUnknownVariant = errors.New("unknown model variant")

	// ErrMissingAPIKey is returned when no credentials are configured.
	ErrMissingAPIKey = errors.New("model API key is not configured")
)

var geminiModels = map[string]string{
	VariantFlash:     "gemini-2.5-flash",
	VariantPro:       "gemini-2.5-pro",
	VariantFlashLite: "gemini-2.5-flash-lite",
}

// ResolveModel maps a provider and variant to a concrete model id. An
// empty provider means gemini; an empty variant means DefaultVariant.
func ResolveModel(provider, variant string) (string, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(provider)))
	if p == "" {
		p = ProviderGemini
	}
	if p != ProviderGemini {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	v := strings.ToLower(strings.TrimSpace(variant))
	if v == "" {
		v = DefaultVariant
	}
	if id, ok := geminiModels[v]; ok {
		return id, nil
	}
	// Fully qualified model ids pass through.
	if strings.HasPrefix(v, "gemini-") {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
}
