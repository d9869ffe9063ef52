package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveModelCall(OutcomeSuccess, 200*time.Millisecond)
	m.ObserveModelCall(OutcomeError, time.Second)
	m.ObserveModelCall(OutcomeSuccess, time.Second)
	m.ObserveToolCall("analyze_html", OutcomeSuccess, 50*time.Millisecond)
	m.IncrementRetry("model.generate")
	m.IncrementTimeout()
	m.ObserveAudit(OutcomeSuccess, "html", 3*time.Second)
	m.ObserveIterations(2)
	m.AddIssue("critical")
	m.AddIssue("critical")
	m.IncrementStoreFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("analyze_html", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("model.generate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GovernorTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues(OutcomeSuccess, "html")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Issues.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures))

	n, err := testutil.GatherAndCount(reg, "allycheck_model_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveModelCall(OutcomeSuccess, time.Second)
		m.ObserveToolCall("x", OutcomeError, time.Second)
		m.IncrementRetry("x")
		m.ObserveAudit(OutcomeTimeout, "url", time.Second)
		m.IncrementTimeout()
		m.ObserveIterations(1)
		m.AddIssue("minor")
		m.IncrementStoreFailure()
	})
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
