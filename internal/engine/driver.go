// Package engine runs accessibility audits: it drives the bounded,
// tool-augmented model conversation, races it against the host deadline and
// turns the answer into a deduplicated, metrics-bearing result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"allycheck/internal/logging"
	"allycheck/internal/observability"
	"allycheck/internal/perception"
	"allycheck/internal/retry"
	"allycheck/internal/tools"
	"allycheck/internal/types"
)

// DefaultMaxIterations bounds the tool rounds of one conversation.
const DefaultMaxIterations = 5

// State is a conversation state.
type State string

const (
	StateInit           State = "INIT"
	StateAwaitingModel  State = "AWAITING_MODEL"
	StateExecutingTools State = "EXECUTING_TOOLS"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Driver runs one conversation at a time per Converse call. A Driver holds
// no per-run state and may be shared between concurrent runs.
type Driver struct {
	Model perception.ModelClient
	Tools *tools.Registry

	// MaxIterations bounds tool rounds; the conversation makes at most
	// MaxIterations+1 model turns.
	MaxIterations int

	ModelPolicy  retry.Policy // first turn
	ResultPolicy retry.Policy // turns that carry tool results back
	ToolPolicy   retry.Policy // each tool invocation

	Metrics *observability.Metrics

	Temperature     float32
	MaxOutputTokens int32
}

// NewDriver returns a driver with the default iteration ceiling and retry
// policies.
func NewDriver(model perception.ModelClient, registry *tools.Registry) *Driver {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Driver{
		Model:         model,
		Tools:         registry,
		MaxIterations: DefaultMaxIterations,
		ModelPolicy:   retry.ModelPolicy(perception.IsTransient),
		ResultPolicy:  retry.ToolResultPolicy(perception.IsTransient),
		ToolPolicy:    retry.ToolPolicy(tools.IsTransient),
	}
}

// Conversation is the input of one Converse call.
type Conversation struct {
	ModelID           string
	SystemInstruction string
	UserMessage       string
}

// Transcript is what a conversation leaves behind. Raw history is not part
// of it.
type Transcript struct {
	Text       string
	State      State
	Iterations int // completed tool rounds
	ModelCalls int // model turns, not counting retried attempts
	Trace      []types.ToolTrace
	Sources    []string
	Findings   []types.Issue // reported by tools
	Usage      perception.Usage
}

// conversationState is owned by one Converse call.
type conversationState struct {
	state      State
	history    []perception.Message
	iteration  int
	modelCalls int
	trace      []types.ToolTrace
	sources    []string
	seen       map[string]bool
	usage      perception.Usage
}

func (s *conversationState) addSource(src string) {
	if src == "" || s.seen[src] {
		return
	}
	s.seen[src] = true
	s.sources = append(s.sources, src)
}

func (s *conversationState) transcript(text string, findings *tools.Findings) *Transcript {
	return &Transcript{
		Text:       text,
		State:      s.state,
		Iterations: s.iteration,
		ModelCalls: s.modelCalls,
		Trace:      s.trace,
		Sources:    s.sources,
		Findings:   findings.Issues(),
		Usage:      s.usage,
	}
}

// Converse runs the conversation to completion.
//
// The model is asked once; while it requests tools and fewer than
// MaxIterations rounds have run, the requested tools execute sequentially in
// request order and their results go back to the model. Tool failures are
// sent to the model as {"error": "..."} payloads and never end the run.
// Once the ceiling is reached the conversation concludes with whatever text
// the last response carries.
//
// Provider errors that survive retry and context cancellation end the run
// in StateFailed; the partial transcript is returned with the error.
func (d *Driver) Converse(ctx context.Context, conv Conversation) (*Transcript, error) {
	findings := &tools.Findings{}
	ctx = tools.WithFindings(ctx, findings)

	st := &conversationState{
		state:   StateInit,
		history: []perception.Message{perception.UserText(conv.UserMessage)},
		seen:    make(map[string]bool),
	}
	maxIter := d.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	registry := d.Tools
	if registry == nil {
		registry = tools.NewRegistry()
	}
	defs := registry.Definitions()

	policy, op := d.ModelPolicy, "model call"
	for {
		st.state = StateAwaitingModel
		resp, err := d.generate(ctx, conv, st, defs, policy, op)
		if err != nil {
			st.state = StateFailed
			logging.EngineError("Conversation failed after %d model calls: %v", st.modelCalls, err)
			return st.transcript("", findings), err
		}

		if !resp.HasToolCalls() {
			st.state = StateDone
			return st.transcript(resp.Text, findings), nil
		}
		if st.iteration >= maxIter {
			logging.EngineWarn("Iteration ceiling %d reached with %d pending tool calls; concluding", maxIter, len(resp.ToolCalls))
			st.state = StateDone
			return st.transcript(resp.Text, findings), nil
		}

		st.state = StateExecutingTools
		st.history = append(st.history, perception.Message{
			Role:      perception.RoleModel,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]perception.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				st.state = StateFailed
				return st.transcript("", findings), err
			}
			results = append(results, d.execute(ctx, registry, st, call))
		}
		st.history = append(st.history, perception.Message{Role: perception.RoleUser, ToolResults: results})
		st.iteration++
		logging.EngineDebug("Tool round %d/%d done (%d calls)", st.iteration, maxIter, len(results))

		policy, op = d.ResultPolicy, "tool results"
	}
}

func (d *Driver) generate(ctx context.Context, conv Conversation, st *conversationState, defs []types.ToolDefinition, policy retry.Policy, op string) (*perception.ModelResponse, error) {
	req := &perception.ModelRequest{
		Model:             conv.ModelID,
		SystemInstruction: conv.SystemInstruction,
		History:           st.history,
		Tools:             defs,
		Temperature:       d.Temperature,
		MaxOutputTokens:   d.MaxOutputTokens,
	}
	policy.OnRetry = d.onRetry

	st.modelCalls++
	resp, err := retry.Do(ctx, policy, op, func(ctx context.Context) (*perception.ModelResponse, error) {
		start := time.Now()
		resp, err := d.Model.Generate(ctx, req)
		d.Metrics.ObserveModelCall(outcomeOf(err), time.Since(start))
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &perception.ProviderError{Provider: "unknown", Message: "empty response"}
	}

	st.usage.PromptTokens += resp.Usage.PromptTokens
	st.usage.OutputTokens += resp.Usage.OutputTokens
	st.usage.TotalTokens += resp.Usage.TotalTokens
	return resp, nil
}

// execute runs one tool call through the tool retry policy and converts the
// outcome into the payload sent back to the model.
func (d *Driver) execute(ctx context.Context, registry *tools.Registry, st *conversationState, call types.ToolCall) perception.ToolResult {
	policy := d.ToolPolicy
	policy.OnRetry = d.onRetry

	var last *tools.ToolResult
	_, err := retry.Do(ctx, policy, "tool "+call.Name, func(ctx context.Context) (struct{}, error) {
		res, err := registry.Execute(ctx, call.Name, call.Args)
		last = res
		return struct{}{}, err
	})
	if last == nil {
		last = &tools.ToolResult{ToolName: call.Name, Args: call.Args, StartedAt: time.Now()}
	}
	if err != nil && last.Error == nil {
		last.Error = err
	}

	d.Metrics.ObserveToolCall(call.Name, outcomeOf(last.Error), time.Duration(last.DurationMs)*time.Millisecond)
	st.trace = append(st.trace, last.Trace(st.iteration+1))
	st.addSource(sourceOf(call))

	payload := map[string]any{"result": last.Result}
	if last.Error != nil {
		logging.ToolsWarn("Tool %s failed: %v", call.Name, last.Error)
		payload = map[string]any{"error": toolErrorText(last.Error)}
	}
	return perception.ToolResult{CallID: call.ID, Name: call.Name, Output: payload}
}

func (d *Driver) onRetry(operation string, _ int, _ error) {
	d.Metrics.IncrementRetry(operation)
}

// toolErrorText strips the "tool x failed:" prefix the model does not need.
func toolErrorText(err error) string {
	var ee *tools.ExecutionError
	if errors.As(err, &ee) && ee.Err != nil {
		return ee.Err.Error()
	}
	return err.Error()
}

// sourceOf names what a tool call consulted: the URL it fetched, or the
// tool itself.
func sourceOf(call types.ToolCall) string {
	for _, key := range []string{"url", "file_path"} {
		if v, ok := call.Args[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if id, ok := call.Args["criterion_id"].(string); ok && id != "" {
		return fmt.Sprintf("WCAG %s", id)
	}
	return call.Name
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeError
	}
}
