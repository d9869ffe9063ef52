package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"allycheck/internal/chunker"
	"allycheck/internal/config"
	"allycheck/internal/dedup"
	"allycheck/internal/logging"
	"allycheck/internal/metrics"
	"allycheck/internal/observability"
	"allycheck/internal/parser"
	"allycheck/internal/perception"
	"allycheck/internal/prompt"
	"allycheck/internal/retry"
	"allycheck/internal/tools"
	"allycheck/internal/types"
)

// DefaultStoreTimeout bounds the best-effort persistence write.
const DefaultStoreTimeout = 5 * time.Second

// Recorder persists finished audits.
type Recorder interface {
	SaveAudit(ctx context.Context, req *types.AuditRequest, res *types.AuditResult) error
}

// Engine runs audits. It is safe for concurrent use; runs share no mutable
// state apart from the hot-swappable deduplicator.
type Engine struct {
	model    perception.ModelClient
	registry *tools.Registry
	prompts  *prompt.Builder
	parser   *parser.Parser
	dedup    atomic.Pointer[dedup.Deduplicator]
	store    Recorder
	metrics  *observability.Metrics
	governor Governor

	provider        string
	variant         string
	maxIterations   int
	chunkSize       int
	storeTimeout    time.Duration
	temperature     float32
	maxOutputTokens int32

	policies *policies
}

type policies struct {
	model, result, tool retry.Policy
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists every successful audit through r.
func WithStore(r Recorder) Option {
	return func(e *Engine) { e.store = r }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDeduplicator replaces the default deduplicator.
func WithDeduplicator(d *dedup.Deduplicator) Option {
	return func(e *Engine) { e.dedup.Store(d) }
}

// WithParser replaces the default parser cascade.
func WithParser(p *parser.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithPrompts replaces the embedded prompt atoms.
func WithPrompts(b *prompt.Builder) Option {
	return func(e *Engine) { e.prompts = b }
}

// WithGovernor sets the wall-clock budget.
func WithGovernor(g Governor) Option {
	return func(e *Engine) { e.governor = g }
}

// WithRetryPolicies overrides the model, tool-result and tool policies.
func WithRetryPolicies(model, result, tool retry.Policy) Option {
	return func(e *Engine) { e.policies = &policies{model: model, result: result, tool: tool} }
}

// WithConfig applies engine, model and dedup settings.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.provider = cfg.Model.Provider
		e.variant = cfg.Model.Variant
		e.temperature = cfg.Model.Temperature
		e.maxOutputTokens = cfg.Model.MaxOutputTokens
		e.maxIterations = cfg.Engine.MaxIterations
		e.chunkSize = cfg.Engine.ChunkSize
		e.storeTimeout = cfg.GetStoreTimeout()
		e.governor = Governor{HostLimit: cfg.GetHostLimit(), SafetyBuffer: cfg.GetSafetyBuffer()}
		d := cfg.Dedup
		e.dedup.Store(&d)
	}
}

// New builds an engine around a model client and a tool registry.
func New(model perception.ModelClient, registry *tools.Registry, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, &config.ConfigurationError{Field: "model", Message: "no model client"}
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	e := &Engine{
		model:         model,
		registry:      registry,
		parser:        parser.New(),
		governor:      DefaultGovernor(),
		maxIterations: DefaultMaxIterations,
		chunkSize:     chunker.DefaultMaxSize,
		storeTimeout:  DefaultStoreTimeout,
	}
	e.dedup.Store(dedup.New())
	for _, opt := range opts {
		opt(e)
	}
	if e.prompts == nil {
		b, err := prompt.NewBuilder()
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		e.prompts = b
	}
	return e, nil
}

// SetDeduplicator swaps the deduplicator for subsequent runs.
func (e *Engine) SetDeduplicator(d *dedup.Deduplicator) {
	if d != nil {
		e.dedup.Store(d)
	}
}

// Deduplicator returns the deduplicator in effect.
func (e *Engine) Deduplicator() *dedup.Deduplicator {
	return e.dedup.Load()
}

// Registry returns the tool registry offered to the model.
func (e *Engine) Registry() *tools.Registry {
	return e.registry
}

func (e *Engine) driver() *Driver {
	d := NewDriver(e.model, e.registry)
	d.MaxIterations = e.maxIterations
	d.Metrics = e.metrics
	d.Temperature = e.temperature
	d.MaxOutputTokens = e.maxOutputTokens
	if e.policies != nil {
		d.ModelPolicy = e.policies.model
		d.ResultPolicy = e.policies.result
		d.ToolPolicy = e.policies.tool
	}
	return d
}

// Run executes one audit.
//
// The request is validated and the model resolved before anything touches
// the network. The input is chunked and every chunk gets its own
// conversation, sequentially, all inside one governor deadline. Parsed and
// tool-reported issues are merged, sorted and tallied; a successful result
// is handed to the store once, best-effort.
func (e *Engine) Run(ctx context.Context, req *types.AuditRequest) (*types.AuditResult, error) {
	start := time.Now()
	res, err := e.run(ctx, req, start)

	outcome := observability.OutcomeSuccess
	switch Classify(err) {
	case "":
	case KindTimeout:
		outcome = observability.OutcomeTimeout
	default:
		outcome = observability.OutcomeError
	}
	e.metrics.ObserveAudit(outcome, string(req.Mode), time.Since(start))
	return res, err
}

type runOutput struct {
	texts      []string
	issues     []types.Issue
	trace      []types.ToolTrace
	sources    []string
	iterations int
	usage      perception.Usage
}

func (e *Engine) run(ctx context.Context, req *types.AuditRequest, start time.Time) (*types.AuditResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	provider, variant := req.Model, req.Variant
	if provider == "" {
		provider = e.provider
	}
	if variant == "" {
		variant = e.variant
	}
	modelID, err := perception.ResolveModel(provider, variant)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "model", Message: "cannot resolve model", Err: err}
	}

	system, err := e.prompts.System(req.EffectiveLocale(), e.registry.Names())
	if err != nil {
		return nil, &config.ConfigurationError{Field: "prompts", Message: "no system prompt", Err: err}
	}

	chunks := e.chunk(req)
	logging.Engine("Audit started: mode=%s model=%s chunks=%d", req.Mode, modelID, len(chunks))

	deadline := e.governor.Deadline()
	out, err := Race(ctx, deadline, func(ctx context.Context) (*runOutput, error) {
		return e.converse(ctx, req, modelID, system, chunks)
	})
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			e.metrics.IncrementTimeout()
			logging.EngineWarn("Audit timed out after %v", deadline)
		}
		return nil, err
	}

	issues := e.dedup.Load().Merge(out.issues)
	dedup.Sort(issues)
	for _, issue := range issues {
		e.metrics.AddIssue(string(issue.Severity))
	}

	result := &types.AuditResult{
		ID:               uuid.NewString(),
		Issues:           issues,
		Metrics:          metrics.Aggregate(issues),
		RawAnalysis:      strings.Join(out.texts, "\n\n"),
		ToolResults:      out.trace,
		SourcesConsulted: out.sources,
		DurationMs:       time.Since(start).Milliseconds(),
		Chunks:           len(chunks),
		Iterations:       out.iterations,
		CreatedAt:        start.UTC(),
	}
	if result.ToolResults == nil {
		result.ToolResults = []types.ToolTrace{}
	}
	if result.SourcesConsulted == nil {
		result.SourcesConsulted = []string{}
	}
	logging.Engine("Audit %s finished: %d issues (%d before merge) in %dms, %d tokens",
		result.ID, len(issues), len(out.issues), result.DurationMs, out.usage.TotalTokens)

	e.record(ctx, req, result)
	return result, nil
}

// chunk splits the request content. URLs are never split; documents split
// on lines; everything else is markup.
func (e *Engine) chunk(req *types.AuditRequest) []string {
	switch req.Mode {
	case types.ModeURL:
		return []string{strings.TrimSpace(req.Content)}
	case types.ModeDocument:
		return chunker.Split(req.Content, e.chunkSize)
	default:
		return chunker.SplitMarkup(req.Content, e.chunkSize)
	}
}

// converse runs one conversation per chunk, in order.
func (e *Engine) converse(ctx context.Context, req *types.AuditRequest, modelID, system string, chunks []string) (*runOutput, error) {
	driver := e.driver()
	out := &runOutput{}
	seen := make(map[string]bool)

	for i, chunk := range chunks {
		user, err := e.prompts.User(req, chunk, i+1, len(chunks))
		if err != nil {
			return nil, &config.ConfigurationError{Field: "prompts", Message: "cannot render user prompt", Err: err}
		}

		tr, err := driver.Converse(ctx, Conversation{ModelID: modelID, SystemInstruction: system, UserMessage: user})
		if err != nil {
			return nil, err
		}
		e.metrics.ObserveIterations(tr.Iterations)

		parsed := e.parser.Parse(tr.Text)
		logging.EngineDebug("Chunk %d/%d: %d parsed issues via %s, %d tool findings",
			i+1, len(chunks), len(parsed.Issues), parsed.Strategy, len(tr.Findings))

		for _, issue := range parsed.Issues {
			issue.Chunk = i
			out.issues = append(out.issues, issue)
		}
		for _, issue := range tr.Findings {
			parser.Enrich(&issue)
			issue.Chunk = i
			out.issues = append(out.issues, issue)
		}

		if strings.TrimSpace(tr.Text) != "" {
			out.texts = append(out.texts, tr.Text)
		}
		out.trace = append(out.trace, tr.Trace...)
		for _, src := range tr.Sources {
			if !seen[src] {
				seen[src] = true
				out.sources = append(out.sources, src)
			}
		}
		out.iterations += tr.Iterations
		out.usage.PromptTokens += tr.Usage.PromptTokens
		out.usage.OutputTokens += tr.Usage.OutputTokens
		out.usage.TotalTokens += tr.Usage.TotalTokens
	}
	return out, nil
}

// record hands the result to the store once. The write survives caller
// cancellation but is bounded by storeTimeout; failures are logged only.
func (e *Engine) record(ctx context.Context, req *types.AuditRequest, res *types.AuditResult) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.storeTimeout)
	defer cancel()

	if err := e.store.SaveAudit(ctx, req, res); err != nil {
		e.metrics.IncrementStoreFailure()
		logging.StoreWarn("Failed to persist audit %s: %v", res.ID, err)
		return
	}
	logging.StoreDebug("Persisted audit %s", res.ID)
}
