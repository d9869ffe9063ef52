package engine

import (
	"context"
	"fmt"
	"time"
)

// Governor defaults. Hosts such as serverless platforms kill a request at
// HostLimit; the engine gives up SafetyBuffer earlier so it can still answer.
const (
	DefaultHostLimit    = 60 * time.Second
	DefaultSafetyBuffer = 10 * time.Second
)

// Governor bounds the wall-clock time of one audit run.
type Governor struct {
	HostLimit    time.Duration
	SafetyBuffer time.Duration
}

// DefaultGovernor returns a governor with a 50s deadline.
func DefaultGovernor() Governor {
	return Governor{HostLimit: DefaultHostLimit, SafetyBuffer: DefaultSafetyBuffer}
}

// Deadline returns HostLimit - SafetyBuffer. A non-positive result falls
// back to the default deadline.
func (g Governor) Deadline() time.Duration {
	d := g.HostLimit - g.SafetyBuffer
	if d <= 0 {
		return DefaultHostLimit - DefaultSafetyBuffer
	}
	return d
}

// TimeoutError is returned when the governor deadline fires before the
// audit finishes.
type TimeoutError struct {
	Deadline time.Duration
	Guidance string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("audit timed out after %v: %s", e.Deadline, e.Guidance)
}

const timeoutGuidance = "the analysis did not finish in time; try a smaller input, audit a single page section, or retry later"

// Race runs fn in its own goroutine and waits for it or for the deadline,
// whichever comes first. On timeout the context passed to fn is cancelled
// and its eventual result is discarded. The result channel is buffered so
// the abandoned goroutine never blocks on send.
//
// Cancellation of the parent ctx is reported as ctx.Err(), not a timeout.
func Race[T any](ctx context.Context, deadline time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := fn(runCtx)
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var zero T
	select {
	case o := <-done:
		return o.v, o.err
	case <-timer.C:
		return zero, &TimeoutError{Deadline: deadline, Guidance: timeoutGuidance}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
