package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects what kind of content an audit looks at.
type Mode string

const (
	ModeURL      Mode = "url"
	ModeHTML     Mode = "html"
	ModeSnippet  Mode = "snippet"
	ModeDocument Mode = "document"
	ModeIssue    Mode = "issue" // investigate a suspected issue description
)

// Locale selects the language of the produced analysis.
type Locale string

const (
	LocaleSwedish Locale = "sv-SE"
	LocaleEnglish Locale = "en-US"
)

// DefaultLocale is used when a request does not name one.
const DefaultLocale = LocaleSwedish

var (
	// ErrEmptyContent is returned when a request carries nothing to audit.
	ErrEmptyContent = errors.New("audit content cannot be empty")

	// ErrUnknownMode is returned for an unsupported input mode.
	ErrUnknownMode = errors.New("unknown audit mode")

	// ErrUnknownLocale is returned for an unsupported locale.
	ErrUnknownLocale = errors.New("unknown locale")

	// ErrMissingSuspectedIssue is returned for issue mode without a description.
	ErrMissingSuspectedIssue = errors.New("issue mode requires a suspected issue")
)

// AuditRequest is the immutable input of one audit run.
type AuditRequest struct {
	Mode    Mode   `json:"mode"`
	Content string `json:"content"`
	// Model names the provider ("gemini"); Variant selects the model tier.
	Model   string `json:"model"`
	Variant string `json:"variant,omitempty"`
	Locale  Locale `json:"locale,omitempty"`

	// Document mode only.
	DocumentType string `json:"document_type,omitempty"`
	FilePath     string `json:"file_path,omitempty"`

	// Issue mode only: what the reporter believes is wrong with Content.
	SuspectedIssue string `json:"suspected_issue,omitempty"`
}

// Validate checks that the request is usable. It does not touch the network.
func (r *AuditRequest) Validate() error {
	switch r.Mode {
	case ModeURL, ModeHTML, ModeSnippet, ModeDocument, ModeIssue:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, r.Mode)
	}
	if strings.TrimSpace(r.Content) == "" && r.FilePath == "" {
		return ErrEmptyContent
	}
	if r.Mode == ModeIssue && strings.TrimSpace(r.SuspectedIssue) == "" {
		return ErrMissingSuspectedIssue
	}
	switch r.Locale {
	case "", LocaleSwedish, LocaleEnglish:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLocale, r.Locale)
	}
	return nil
}

// EffectiveLocale returns the request locale or the default.
func (r *AuditRequest) EffectiveLocale() Locale {
	if r.Locale == "" {
		return DefaultLocale
	}
	return r.Locale
}

// AuditMetrics tallies issues by severity and by principle. Both breakdowns
// sum to Total.
type AuditMetrics struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`

	Perceivable    int `json:"perceivable"`
	Operable       int `json:"operable"`
	Understandable int `json:"understandable"`
	Robust         int `json:"robust"`
}

// ToolDefinition is a static catalog entry advertised to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema object
}

// ToolCall is one model-requested tool invocation.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	// Signature is an opaque provider token that must be echoed back with
	// the call when it is replayed in history.
	Signature []byte `json:"-"`
}

// ToolTrace records one executed tool call.
type ToolTrace struct {
	Name       string         `json:"tool"`
	Args       map[string]any `json:"args,omitempty"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
	Iteration  int            `json:"iteration"`
}

// Failed reports whether the call produced an error.
func (t ToolTrace) Failed() bool { return t.Error != "" }

// AuditResult is the outcome of a successful audit run.
type AuditResult struct {
	ID               string       `json:"id"`
	Issues           []Issue      `json:"issues"`
	Metrics          AuditMetrics `json:"metrics"`
	RawAnalysis      string       `json:"raw_analysis"`
	ToolResults      []ToolTrace  `json:"tool_results"`
	SourcesConsulted []string     `json:"sources_consulted"`
	DurationMs       int64        `json:"duration_ms"`
	Chunks           int          `json:"chunks"`
	Iterations       int          `json:"iterations"`
	CreatedAt        time.Time    `json:"created_at"`
}
