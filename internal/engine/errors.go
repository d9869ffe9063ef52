package engine

import (
	"context"
	"errors"
	"net/http"

	"allycheck/internal/config"
	"allycheck/internal/perception"
	"allycheck/internal/retry"
	"allycheck/internal/tools"
	"allycheck/internal/types"
)

// ErrorKind classifies a failed audit for callers.
type ErrorKind string

const (
	KindTransientProvider ErrorKind = "transient_provider_error"
	KindPermanentProvider ErrorKind = "permanent_provider_error"
	KindToolExecution     ErrorKind = "tool_execution_error"
	KindTimeout           ErrorKind = "timeout"
	KindConfiguration     ErrorKind = "configuration_error"
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindCanceled          ErrorKind = "canceled"
	KindInternal          ErrorKind = "internal_error"
)

// Classify maps an error returned by the engine to its kind. A nil error
// has no kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return KindTimeout
	}
	if config.IsConfigurationError(err) {
		return KindConfiguration
	}
	if errors.Is(err, types.ErrEmptyContent) || errors.Is(err, types.ErrUnknownMode) ||
		errors.Is(err, types.ErrUnknownLocale) || errors.Is(err, types.ErrMissingSuspectedIssue) {
		return KindInvalidRequest
	}

	var pe *perception.ProviderError
	if errors.As(err, &pe) {
		// Exhausted retries are still transient from the caller's view.
		if pe.Transient || errors.Is(err, retry.ErrAttemptsExhausted) {
			return KindTransientProvider
		}
		return KindPermanentProvider
	}

	var te *tools.ExecutionError
	if errors.As(err, &te) {
		return KindToolExecution
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// HTTPStatus returns the HTTP status code for the kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindTransientProvider:
		return http.StatusServiceUnavailable
	case KindPermanentProvider, KindToolExecution:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode returns the CLI exit code for the kind.
func (k ErrorKind) ExitCode() int {
	switch k {
	case "":
		return 0
	case KindInvalidRequest:
		return 2
	case KindConfiguration:
		return 3
	case KindTransientProvider, KindPermanentProvider, KindToolExecution:
		return 4
	case KindTimeout:
		return 5
	case KindCanceled:
		return 130
	default:
		return 1
	}
}
