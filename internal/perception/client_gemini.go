package perception

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"allycheck/internal/logging"
	"allycheck/internal/types"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Timeout time.Duration // per call; zero leaves it to ctx
}

// contentGenerator is the slice of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements ModelClient for Google Gemini.
type GeminiClient struct {
	models  contentGenerator
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{models: client.Models, timeout: cfg.Timeout}, nil
}

// Generate sends the conversation and returns the next model turn.
func (c *GeminiClient) Generate(ctx context.Context, req *ModelRequest) (*ModelResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents := toContents(req.History)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, classify(ctx, err)
	}

	out, err := fromResponse(resp)
	if err != nil {
		return nil, err
	}
	logging.PerceptionDebug("Gemini %s: %d tool calls, %d tokens in %v",
		req.Model, len(out.ToolCalls), out.Usage.TotalTokens, time.Since(start))
	return out, nil
}

func toContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		for _, call := range m.ToolCalls {
			parts = append(parts, &genai.Part{
				FunctionCall:     &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args},
				ThoughtSignature: call.Signature,
			})
		}
		for _, res := range m.ToolResults {
			part := genai.NewPartFromFunctionResponse(res.Name, res.Output)
			part.FunctionResponse.ID = res.CallID
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return contents
}

func toDeclarations(defs []types.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toSchema(d.Parameters),
		})
	}
	return decls
}

func fromResponse(resp *genai.GenerateContentResponse) (*ModelResponse, error) {
	out := &ModelResponse{}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens: int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, &ProviderError{
				Provider: string(ProviderGemini),
				Message:  fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
			}
		}
		return out, nil
	}

	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)
	if cand.Content == nil {
		return out, nil
	}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Args:      part.FunctionCall.Args,
				Signature: part.ThoughtSignature,
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	out.Text = text.String()
	return out, nil
}

// classify converts an SDK error into a ProviderError. Cancellation by the
// caller is returned unchanged.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return err
	}

	pe := &ProviderError{Provider: string(ProviderGemini), Message: err.Error(), Err: err}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode, pe.Message = apiErr.Code, apiErr.Message
	case errors.As(err, &apiErrPtr):
		pe.StatusCode, pe.Message = apiErrPtr.Code, apiErrPtr.Message
	}

	var netErr net.Error
	switch {
	case pe.StatusCode > 0:
		pe.Transient = transientStatus(pe.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		pe.Transient = true
	case errors.As(err, &netErr):
		pe.Transient = true
	}

	if pe.Transient {
		logging.PerceptionWarn("Transient Gemini failure: %s", pe.Message)
	}
	return pe
}
