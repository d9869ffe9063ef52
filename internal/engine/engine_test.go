package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allycheck/internal/config"
	"allycheck/internal/dedup"
	"allycheck/internal/observability"
	"allycheck/internal/perception"
	"allycheck/internal/retry"
	"allycheck/internal/tools"
	"allycheck/internal/types"
)

type memoryRecorder struct {
	mu    sync.Mutex
	saved []*types.AuditResult
	err   error
}

func (r *memoryRecorder) SaveAudit(ctx context.Context, req *types.AuditRequest, res *types.AuditResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, res)
	return r.err
}

func (r *memoryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func newTestEngine(t *testing.T, model perception.ModelClient, registry *tools.Registry, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithRetryPolicies(
		fastPolicy(4, perception.IsTransient),
		fastPolicy(2, perception.IsTransient),
		fastPolicy(2, tools.IsTransient),
	)}, opts...)
	e, err := New(model, registry, opts...)
	require.NoError(t, err)
	return e
}

func issuesJSON(issues ...string) string {
	return "```json\n{\"issues\": [" + strings.Join(issues, ",") + "]}\n```"
}

func issueJSON(criterion, title, severity, selector string) string {
	return fmt.Sprintf(`{"wcag_criterion": %q, "title": %q, "description": "%s details", "severity": %q, "element_selector": %q}`,
		criterion, title, title, severity, selector)
}

func TestGovernorDeadline(t *testing.T) {
	assert.Equal(t, 50*time.Second, DefaultGovernor().Deadline())
	assert.Equal(t, 200*time.Millisecond, Governor{HostLimit: time.Second, SafetyBuffer: 800 * time.Millisecond}.Deadline())
	assert.Equal(t, 50*time.Second, Governor{HostLimit: time.Second, SafetyBuffer: 2 * time.Second}.Deadline())
}

func TestRaceReturnsResult(t *testing.T) {
	v, err := Race(context.Background(), time.Second, func(ctx context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Race(context.Background(), time.Second, func(ctx context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestRaceTimesOutAndCancels(t *testing.T) {
	cancelled := make(chan struct{})
	start := time.Now()
	_, err := Race(context.Background(), 30*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "too late", nil
	})
	elapsed := time.Since(start)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 30*time.Millisecond, te.Deadline)
	assert.NotEmpty(t, te.Guidance)
	assert.Less(t, elapsed, 500*time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight work was not cancelled")
	}
}

func TestRaceParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Race(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, Classify(err))
}

func TestRunHappyPath(t *testing.T) {
	reply := issuesJSON(
		issueJSON("1.4.3", "Low contrast footer", "serious", "footer a"),
		issueJSON("1.1.1", "Logo lacks alt", "critical", "img.logo"),
		issueJSON("1.1.1", "Logo missing alt", "minor", "img.logo"),
	)
	model := perception.NewScripted(perception.Reply(reply))
	store := &memoryRecorder{}
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	e := newTestEngine(t, model, nil, WithStore(store), WithMetrics(m))
	res, err := e.Run(context.Background(), &types.AuditRequest{Mode: types.ModeHTML, Content: "<img class=logo src=a.png>", Locale: types.LocaleEnglish})
	require.NoError(t, err)

	require.Len(t, res.Issues, 2)
	assert.Equal(t, "1.1.1", res.Issues[0].Criterion, "critical sorts first")
	assert.Equal(t, types.SeverityCritical, res.Issues[0].Severity)
	assert.Equal(t, "1.4.3", res.Issues[1].Criterion)
	assert.Equal(t, 2, res.Metrics.Total)
	assert.Equal(t, 1, res.Metrics.Critical)
	assert.Equal(t, 1, res.Metrics.Serious)
	assert.Equal(t, 2, res.Metrics.Perceivable)
	assert.Equal(t, reply, res.RawAnalysis)
	assert.Equal(t, 1, res.Chunks)
	assert.NotEmpty(t, res.ID)
	assert.NotNil(t, res.ToolResults)
	assert.NotNil(t, res.SourcesConsulted)

	assert.Equal(t, 1, store.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Audits.WithLabelValues(observability.OutcomeSuccess, "html")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Issues.WithLabelValues("critical")))

	req := model.Request(0)
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	assert.Contains(t, req.History[0].Text, "<img class=logo src=a.png>")
	assert.NotEmpty(t, req.SystemInstruction)
}

func TestRunUnparseableTextYieldsFallback(t *testing.T) {
	model := perception.NewScripted(perception.Reply("The page looks mostly fine but I could not structure my answer."))
	res, err := newTestEngine(t, model, nil).Run(context.Background(), &types.AuditRequest{Mode: types.ModeSnippet, Content: "<div>hi</div>"})
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, types.GenericCriterion, res.Issues[0].Criterion)
	assert.Equal(t, types.SeverityModerate, res.Issues[0].Severity)
}

func TestRunMergesToolFindings(t *testing.T) {
	registry := tools.NewRegistry()
	registry.MustRegister(echoTool("analyze_html", func(ctx context.Context, args map[string]any) (string, error) {
		tools.Report(ctx, types.Issue{Criterion: "1.4.3", Title: "Elements must meet contrast", Severity: types.SeverityModerate,
			Source: types.SourceAutomated, Selector: "footer a"})
		return "1 violation", nil
	}))
	model := perception.NewScripted(
		callsStep("", types.ToolCall{Name: "analyze_html", Args: map[string]any{"html": "<footer>"}}),
		perception.Reply(issuesJSON(issueJSON("1.4.3", "Low contrast footer", "serious", "footer a"))),
	)

	res, err := newTestEngine(t, model, registry).Run(context.Background(), &types.AuditRequest{Mode: types.ModeHTML, Content: "<footer><a>x</a></footer>"})
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, types.SeveritySerious, issue.Severity)
	assert.True(t, issue.HasSource(types.SourceAutomated))
	assert.True(t, issue.HasSource(types.SourceHeuristic))
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.ToolResults, 1)
	assert.Equal(t, "analyze_html", res.ToolResults[0].Name)
	assert.Equal(t, []string{"analyze_html"}, res.SourcesConsulted)
}

func TestRunChunksLargeMarkup(t *testing.T) {
	markup := strings.Repeat("<div>abcdefghi</div>", 6000) // 120,000 bytes
	require.Len(t, markup, 120000)

	model := perception.NewScripted(
		perception.Reply(issuesJSON(issueJSON("1.1.1", "Images lack alt", "serious", "img"), issueJSON("1.3.1", "Div soup", "minor", "div"))),
		perception.Reply(issuesJSON(issueJSON("2.4.4", "Vague links", "moderate", "a"))),
		perception.Reply(issuesJSON(issueJSON("4.1.2", "Custom widget has no role", "critical", "div.widget"), issueJSON("3.1.1", "No lang", "serious", "html"))),
	)
	res, err := newTestEngine(t, model, nil).Run(context.Background(), &types.AuditRequest{Mode: types.ModeHTML, Content: markup})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, model.Calls())
	assert.Len(t, res.Issues, 5, "distinct issues from every chunk survive")

	chunkOf := map[string]int{}
	for _, issue := range res.Issues {
		chunkOf[issue.Criterion] = issue.Chunk
	}
	assert.Equal(t, map[string]int{"1.1.1": 0, "1.3.1": 0, "2.4.4": 1, "4.1.2": 2, "3.1.1": 2}, chunkOf)

	for i := 0; i < 3; i++ {
		assert.Contains(t, model.Request(i).History[0].Text, fmt.Sprintf("del %d av 3", i+1))
	}
}

func TestRunTimesOut(t *testing.T) {
	model := perception.NewScripted(perception.ScriptStep{Delay: time.Hour, Response: &perception.ModelResponse{Text: "never"}})
	store := &memoryRecorder{}
	reg := prometheus.NewRegistry()
	m := observability.New(reg)
	e := newTestEngine(t, model, nil, WithStore(store), WithMetrics(m),
		WithGovernor(Governor{HostLimit: 150 * time.Millisecond, SafetyBuffer: 100 * time.Millisecond}))

	start := time.Now()
	res, err := e.Run(context.Background(), &types.AuditRequest{Mode: types.ModeURL, Content: "https://example.se"})
	elapsed := time.Since(start)

	assert.Nil(t, res)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTimeout, Classify(err))
	assert.Less(t, elapsed, 50*time.Millisecond+500*time.Millisecond)
	assert.Equal(t, 0, store.count(), "timed out runs are not persisted")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GovernorTimeouts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Audits.WithLabelValues(observability.OutcomeTimeout, "url")))
}

func TestRunRejectsInvalidRequestBeforeCallingModel(t *testing.T) {
	model := perception.NewScripted(perception.Reply("unused"))
	e := newTestEngine(t, model, nil)

	tests := []struct {
		name string
		req  types.AuditRequest
		kind ErrorKind
	}{
		{"empty content", types.AuditRequest{Mode: types.ModeHTML, Content: "  "}, KindInvalidRequest},
		{"unknown mode", types.AuditRequest{Mode: "pdf", Content: "x"}, KindInvalidRequest},
		{"issue without description", types.AuditRequest{Mode: types.ModeIssue, Content: "<div>"}, KindInvalidRequest},
		{"unknown provider", types.AuditRequest{Mode: types.ModeHTML, Content: "<p>", Model: "openai"}, KindConfiguration},
		{"unknown variant", types.AuditRequest{Mode: types.ModeHTML, Content: "<p>", Variant: "ultra"}, KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), &tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, Classify(err))
		})
	}
	assert.Equal(t, 0, model.Calls())
}

func TestRunStoreFailureDoesNotFailRun(t *testing.T) {
	model := perception.NewScripted(perception.Reply(issuesJSON(issueJSON("2.4.7", "Focus hidden", "serious", "button"))))
	store := &memoryRecorder{err: errors.New("database is down")}
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	res, err := newTestEngine(t, model, nil, WithStore(store), WithMetrics(m)).
		Run(context.Background(), &types.AuditRequest{Mode: types.ModeSnippet, Content: "<button>"})
	require.NoError(t, err)
	assert.Len(t, res.Issues, 1)
	assert.Equal(t, 1, store.count(), "exactly one write attempt")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreFailures))
}

func TestRunProviderErrorIsSurfaced(t *testing.T) {
	model := perception.NewScripted(perception.ScriptStep{Err: &perception.ProviderError{Provider: "gemini", StatusCode: 403, Message: "key revoked"}})
	store := &memoryRecorder{}
	_, err := newTestEngine(t, model, nil, WithStore(store)).
		Run(context.Background(), &types.AuditRequest{Mode: types.ModeHTML, Content: "<p>"})
	assert.Equal(t, KindPermanentProvider, Classify(err))
	assert.Equal(t, 0, store.count())
}

func TestWithConfigAndHotSwap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Variant = "pro"
	cfg.Engine.MaxIterations = 1
	cfg.Dedup.TitleThreshold = 0.5

	registry := tools.NewRegistry()
	registry.MustRegister(echoTool("lookup", func(context.Context, map[string]any) (string, error) { return "ok", nil }))
	model := perception.NewScripted(callsStep("partial", types.ToolCall{Name: "lookup"}))

	e := newTestEngine(t, model, registry, WithConfig(cfg))
	assert.Equal(t, 0.5, e.Deduplicator().TitleThreshold)
	assert.Equal(t, 50*time.Second, e.governor.Deadline())

	res, err := e.Run(context.Background(), &types.AuditRequest{Mode: types.ModeHTML, Content: "<p>"})
	require.NoError(t, err)
	assert.Equal(t, 2, model.Calls(), "one tool round, then forced conclusion")
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, "gemini-2.5-pro", model.Request(0).Model)

	e.SetDeduplicator(&dedup.Deduplicator{TitleThreshold: 0.9, DescriptionThreshold: 0.9})
	assert.Equal(t, 0.9, e.Deduplicator().TitleThreshold)
	e.SetDeduplicator(nil)
	assert.Equal(t, 0.9, e.Deduplicator().TitleThreshold)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, config.IsConfigurationError(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		status int
		exit   int
	}{
		{"nil", nil, "", http.StatusOK, 0},
		{"timeout", &TimeoutError{Deadline: time.Second}, KindTimeout, http.StatusGatewayTimeout, 5},
		{"config", &config.ConfigurationError{Field: "model"}, KindConfiguration, http.StatusInternalServerError, 3},
		{"invalid", fmt.Errorf("wrapped: %w", types.ErrEmptyContent), KindInvalidRequest, http.StatusBadRequest, 2},
		{"transient", &perception.ProviderError{Transient: true}, KindTransientProvider, http.StatusServiceUnavailable, 4},
		{"exhausted", fmt.Errorf("%w: %w", retry.ErrAttemptsExhausted, &perception.ProviderError{Transient: true}), KindTransientProvider, http.StatusServiceUnavailable, 4},
		{"permanent", &perception.ProviderError{StatusCode: 400}, KindPermanentProvider, http.StatusBadGateway, 4},
		{"tool", &tools.ExecutionError{Tool: "x", Err: errors.New("y")}, KindToolExecution, http.StatusBadGateway, 4},
		{"canceled", context.Canceled, KindCanceled, 499, 130},
		{"deadline", context.DeadlineExceeded, KindTimeout, http.StatusGatewayTimeout, 5},
		{"other", errors.New("???"), KindInternal, http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.status, kind.HTTPStatus())
			assert.Equal(t, tt.exit, kind.ExitCode())
		})
	}
}
