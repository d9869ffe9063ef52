// Package retry runs operations with exponential backoff, retrying only
// failures classified as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"allycheck/internal/logging"
)

// ErrAttemptsExhausted indicates every attempt failed with a transient error.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Classifier reports whether err is worth retrying.
type Classifier func(err error) bool

// Policy configures retry behavior.
type Policy struct {
	MaxAttempts  int           // Total attempts including the first
	InitialDelay time.Duration // Delay after the first failure, doubled each attempt
	MaxDelay     time.Duration // Upper bound on a single delay; zero means no cap
	Classify     Classifier    // nil retries every error

	// OnRetry is called before each backoff sleep.
	OnRetry func(operation string, attempt int, err error)
}

// ModelPolicy is the default for model generation calls.
func ModelPolicy(classify Classifier) Policy {
	return Policy{MaxAttempts: 4, InitialDelay: time.Second, MaxDelay: 8 * time.Second, Classify: classify}
}

// ToolResultPolicy is the default for sending tool results back to the model.
func ToolResultPolicy(classify Classifier) Policy {
	return Policy{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: 4 * time.Second, Classify: classify}
}

// ToolPolicy is the default for tool invocations.
func ToolPolicy(classify Classifier) Policy {
	return Policy{MaxAttempts: 2, InitialDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, Classify: classify}
}

// sleep waits for d or until ctx is done. Replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// After failed attempt k (0-based) it waits InitialDelay*2^k before trying
// again. Permanent errors are returned unwrapped and immediately.
func Do[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logging.EngineDebug("%s succeeded on attempt %d", operation, attempt+1)
			}
			return v, nil
		}
		lastErr = err

		if p.Classify != nil && !p.Classify(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := Backoff(p, attempt)
		logging.EngineWarn("%s attempt %d/%d failed: %v; retrying in %v", operation, attempt+1, attempts, err, delay)
		if p.OnRetry != nil {
			p.OnRetry(operation, attempt, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w for %s after %d attempts: %w", ErrAttemptsExhausted, operation, attempts, lastErr)
}

// Backoff computes the delay after failed attempt k: InitialDelay * 2^k,
// capped at MaxDelay when set.
func Backoff(p Policy, attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}
