package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allycheck/internal/engine"
	"allycheck/internal/observability"
	"allycheck/internal/perception"
	"allycheck/internal/store"
	"allycheck/internal/types"
)

type auditorFunc func(ctx context.Context, req *types.AuditRequest) (*types.AuditResult, error)

func (f auditorFunc) Run(ctx context.Context, req *types.AuditRequest) (*types.AuditResult, error) {
	return f(ctx, req)
}

type fakeReader struct {
	audits map[string]*types.AuditResult
	err    error
}

func (f *fakeReader) GetAudit(ctx context.Context, id string) (*types.AuditResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.audits[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return res, nil
}

func (f *fakeReader) ListAudits(ctx context.Context, limit int) ([]store.Summary, error) {
	var out []store.Summary
	for id := range f.audits {
		if len(out) == limit {
			break
		}
		out = append(out, store.Summary{ID: id})
	}
	return out, f.err
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestPostAudit(t *testing.T) {
	var got *types.AuditRequest
	auditor := auditorFunc(func(ctx context.Context, req *types.AuditRequest) (*types.AuditResult, error) {
		got = req
		return &types.AuditResult{
			ID:          "a1",
			Issues:      []types.Issue{{Criterion: "1.1.1", Title: "Missing alt", Severity: types.SeveritySerious}},
			Metrics:     types.AuditMetrics{Total: 1, Serious: 1, Perceivable: 1},
			RawAnalysis: "raw",
			DurationMs:  42,
		}, nil
	})

	rec := post(t, New(auditor, Options{}).Routes(),
		`{"mode":"html","content":"<img>","model":"gemini","variant":"pro","locale":"en-US"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	require.NotNil(t, got)
	assert.Equal(t, types.ModeHTML, got.Mode)
	assert.Equal(t, "pro", got.Variant)
	assert.Equal(t, types.LocaleEnglish, got.Locale)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"issues", "metrics", "raw_analysis", "tool_results", "sources_consulted", "duration_ms"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, float64(42), body["duration_ms"])
}

func TestPostAuditErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid request", types.ErrEmptyContent, http.StatusBadRequest, string(engine.KindInvalidRequest)},
		{"timeout", &engine.TimeoutError{Deadline: 50 * time.Second, Guidance: "try a smaller input"}, http.StatusGatewayTimeout, string(engine.KindTimeout)},
		{"transient provider", &perception.ProviderError{Provider: "gemini", StatusCode: 503, Transient: true}, http.StatusServiceUnavailable, string(engine.KindTransientProvider)},
		{"permanent provider", &perception.ProviderError{Provider: "gemini", StatusCode: 401}, http.StatusBadGateway, string(engine.KindPermanentProvider)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := auditorFunc(func(context.Context, *types.AuditRequest) (*types.AuditResult, error) { return nil, tt.err })
			rec := post(t, New(auditor, Options{}).Routes(), `{"mode":"html","content":"x"}`)
			assert.Equal(t, tt.status, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, tt.kind, e.Error)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestPostAuditBadBody(t *testing.T) {
	called := false
	auditor := auditorFunc(func(context.Context, *types.AuditRequest) (*types.AuditResult, error) {
		called = true
		return &types.AuditResult{}, nil
	})
	h := New(auditor, Options{MaxBodyBytes: 64}).Routes()

	rec := post(t, h, `{"mode":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(engine.KindInvalidRequest), decodeError(t, rec).Error)

	rec = post(t, h, `{"mode":"html","content":"`+strings.Repeat("x", 200)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, kindTooLarge, decodeError(t, rec).Error)

	assert.False(t, called)
}

func TestPostAuditAdmission(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	auditor := auditorFunc(func(ctx context.Context, req *types.AuditRequest) (*types.AuditResult, error) {
		close(started)
		<-release
		return &types.AuditResult{ID: "slow"}, nil
	})
	h := New(auditor, Options{MaxConcurrent: 1}).Routes()

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(t, h, `{"mode":"html","content":"x"}`) }()
	<-started

	rec := post(t, h, `{"mode":"html","content":"y"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, kindBusy, decodeError(t, rec).Error)

	close(release)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestGetAudit(t *testing.T) {
	reader := &fakeReader{audits: map[string]*types.AuditResult{"a1": {ID: "a1", RawAnalysis: "stored"}}}
	h := New(nil, Options{Reader: reader}).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/a1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res types.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "stored", res.RawAnalysis)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, kindNotFound, decodeError(t, rec).Error)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audits?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"a1"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audits?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadEndpointsWithoutStore(t *testing.T) {
	h := New(nil, Options{}).Routes()
	for _, path := range []string{"/api/audit/x", "/api/audits"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
		assert.Equal(t, kindStoreDisabled, decodeError(t, rec).Error)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)
	m.IncrementTimeout()

	h := New(nil, Options{Gatherer: reg, Version: "1.2.3"}).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1.2.3")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "allycheck_governor_timeouts_total 1")
}

func TestMetricsDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	New(nil, Options{}).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
