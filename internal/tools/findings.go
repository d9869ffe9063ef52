package tools

import (
	"context"
	"sync"

	"allycheck/internal/types"
)

// Findings collects structured issues that tools detect on their own
// (axe-core violations, document checks) alongside their text output.
// The driver installs one per conversation; the engine merges the collected
// issues with the ones parsed from the model's answer.
type Findings struct {
	mu     sync.Mutex
	issues []types.Issue
}

type findingsKey struct{}

// WithFindings returns a context that carries f.
func WithFindings(ctx context.Context, f *Findings) context.Context {
	return context.WithValue(ctx, findingsKey{}, f)
}

// Report records issues on the collector carried by ctx, if any.
func Report(ctx context.Context, issues ...types.Issue) {
	f, _ := ctx.Value(findingsKey{}).(*Findings)
	if f == nil || len(issues) == 0 {
		return
	}
	f.mu.Lock()
	f.issues = append(f.issues, issues...)
	f.mu.Unlock()
}

// Issues returns a copy of everything reported so far.
func (f *Findings) Issues() []types.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Issue, len(f.issues))
	copy(out, f.issues)
	return out
}

// Len returns the number of collected issues.
func (f *Findings) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issues)
}
