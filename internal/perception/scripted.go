package perception

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ScriptStep is one canned model turn.
type ScriptStep struct {
	Response *ModelResponse
	Err      error
	Delay    time.Duration // honoured with ctx cancellation
}

// ScriptedClient replays canned turns in order; the last step repeats.
// Used for offline runs and tests.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []ScriptStep
	requests []ModelRequest
}

// NewScripted returns a client that replays steps.
func NewScripted(steps ...ScriptStep) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Reply is a ScriptStep with plain text.
func Reply(text string) ScriptStep {
	return ScriptStep{Response: &ModelResponse{Text: text}}
}

// Generate implements ModelClient.
func (s *ScriptedClient) Generate(ctx context.Context, req *ModelRequest) (*ModelResponse, error) {
	s.mu.Lock()
	snapshot := *req
	snapshot.History = slices.Clone(req.History)
	s.requests = append(s.requests, snapshot)
	n := len(s.requests)
	var step ScriptStep
	if len(s.steps) > 0 {
		step = s.steps[min(n, len(s.steps))-1]
	}
	s.mu.Unlock()

	if step.Delay > 0 {
		t := time.NewTimer(step.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Response == nil {
		return nil, errors.New("scripted client: no response configured")
	}
	resp := *step.Response
	return &resp, nil
}

// Calls returns how many times Generate was called.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Request returns a copy of the i-th request.
func (s *ScriptedClient) Request(i int) ModelRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}
