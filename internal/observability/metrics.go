// Package observability exposes Prometheus metrics for audit runs.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics provides observability for the audit engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Model calls by outcome, and their latency
	ModelCalls   *prometheus.CounterVec
	ModelLatency prometheus.Histogram

	// Tool calls by tool and outcome, and their latency by tool
	ToolCalls   *prometheus.CounterVec
	ToolLatency *prometheus.HistogramVec

	// Retries by operation
	Retries *prometheus.CounterVec

	// Audits by outcome and mode, and their duration
	Audits        *prometheus.CounterVec
	AuditDuration prometheus.Histogram

	GovernorTimeouts prometheus.Counter
	Iterations       prometheus.Histogram
	Issues           *prometheus.CounterVec
	StoreFailures    prometheus.Counter
}

// New creates Metrics registered on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ModelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allycheck_model_calls_total",
			Help: "Model generation calls by outcome",
		}, []string{"outcome"}),

		ModelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "allycheck_model_call_duration_seconds",
			Help:    "Duration of single model generation calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),

		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allycheck_tool_calls_total",
			Help: "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),

		ToolLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "allycheck_tool_call_duration_seconds",
			Help:    "Duration of tool invocations by tool",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),

		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allycheck_retries_total",
			Help: "Retried operations by operation name",
		}, []string{"operation"}),

		Audits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allycheck_audits_total",
			Help: "Audit runs by outcome and mode",
		}, []string{"outcome", "mode"}),

		AuditDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "allycheck_audit_duration_seconds",
			Help:    "Duration of complete audit runs",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 40, 50, 60},
		}),

		GovernorTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "allycheck_governor_timeouts_total",
			Help: "Conversations abandoned because the deadline fired first",
		}),

		Iterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "allycheck_conversation_iterations",
			Help:    "Tool rounds per conversation",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),

		Issues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allycheck_issues_total",
			Help: "Reported issues by severity",
		}, []string{"severity"}),

		StoreFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "allycheck_store_failures_total",
			Help: "Best-effort audit persistence failures",
		}),
	}
}

// ObserveModelCall records one model call.
func (m *Metrics) ObserveModelCall(outcome string, d time.Duration) {
	if m != nil {
		m.ModelCalls.WithLabelValues(outcome).Inc()
		m.ModelLatency.Observe(d.Seconds())
	}
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool, outcome string, d time.Duration) {
	if m != nil {
		m.ToolCalls.WithLabelValues(tool, outcome).Inc()
		m.ToolLatency.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// IncrementRetry records one retry of an operation.
func (m *Metrics) IncrementRetry(operation string) {
	if m != nil {
		m.Retries.WithLabelValues(operation).Inc()
	}
}

// ObserveAudit records a finished audit run.
func (m *Metrics) ObserveAudit(outcome, mode string, d time.Duration) {
	if m != nil {
		m.Audits.WithLabelValues(outcome, mode).Inc()
		m.AuditDuration.Observe(d.Seconds())
	}
}

// IncrementTimeout records a governor timeout.
func (m *Metrics) IncrementTimeout() {
	if m != nil {
		m.GovernorTimeouts.Inc()
	}
}

// ObserveIterations records the tool rounds of one conversation.
func (m *Metrics) ObserveIterations(n int) {
	if m != nil {
		m.Iterations.Observe(float64(n))
	}
}

// AddIssue records one reported issue.
func (m *Metrics) AddIssue(severity string) {
	if m != nil {
		m.Issues.WithLabelValues(severity).Inc()
	}
}

// IncrementStoreFailure records a failed persistence write.
func (m *Metrics) IncrementStoreFailure() {
	if m != nil {
		m.StoreFailures.Inc()
	}
}
