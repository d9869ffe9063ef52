// Package tools provides the tool catalog the audit model can call.
//
// Each tool is a named, schema-described function. The conversation driver
// advertises Definitions() to the model and dispatches the model's calls
// through Registry.Execute.
//
// Architecture:
//
//	Model ToolCall → Registry.Execute → validateArgs → Tool.Execute → ToolResult
package tools

import (
	"context"
	"time"

	"allycheck/internal/types"
)

// ToolCategory classifies tools by the capability family they belong to.
type ToolCategory string

const (
	// CategoryRetrieval covers fetching remote content.
	CategoryRetrieval ToolCategory = "/retrieval"

	// CategoryAnalysis covers automated rule engines (axe-core).
	CategoryAnalysis ToolCategory = "/analysis"

	// CategoryDocument covers document structure extraction.
	CategoryDocument ToolCategory = "/document"

	// CategoryEvidence covers screenshots and other captured evidence.
	CategoryEvidence ToolCategory = "/evidence"

	// CategoryReference covers WCAG and WAI reference documentation.
	CategoryReference ToolCategory = "/reference"

	// CategoryRemote is for tools proxied from an MCP server.
	CategoryRemote ToolCategory = "/remote"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`

	// Raw, when set, is advertised verbatim instead of Properties. Used for
	// remote tools whose schema is only known as JSON.
	Raw map[string]any `json:"-"`
}

// JSONSchema renders the schema as a JSON-schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	if s.Raw != nil {
		return s.Raw
	}
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Items != nil {
			prop["items"] = map[string]any{"type": p.Items.Type}
		}
		props[name] = prop
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one callable capability.
type Tool struct {
	// Name is the unique identifier the model calls the tool by.
	Name string

	// Description explains what the tool does. Sent to the model.
	Description string

	// Category classifies the tool.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority orders tools within a category (default 50).
	Priority int
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition returns the catalog entry advertised to the model.
func (t *Tool) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Schema.JSONSchema(),
	}
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Args echoes the arguments the tool was called with.
	Args map[string]any

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	StartedAt  time.Time
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}

// Trace converts the result into its trace record.
func (r *ToolResult) Trace(iteration int) types.ToolTrace {
	tr := types.ToolTrace{
		Name:       r.ToolName,
		Args:       r.Args,
		Output:     r.Result,
		StartedAt:  r.StartedAt,
		DurationMs: r.DurationMs,
		Iteration:  iteration,
	}
	if r.Error != nil {
		tr.Error = r.Error.Error()
	}
	return tr
}
