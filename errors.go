package clara

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies a failure on the chat path. Its value is the wire code
// returned to HTTP clients in the "error" field.
type Kind string

const (
	KindConfig        Kind = "CONFIG_ERROR"
	KindEmptyInput    Kind = "EMPTY_INPUT"
	KindInvalidInput  Kind = "INVALID_INPUT"
	KindProvider      Kind = "LLM_ERROR"
	KindNetwork       Kind = "NETWORK_ERROR"
	KindTimeout       Kind = "TIMEOUT"
	KindEmptyResponse Kind = "EMPTY_RESPONSE"

	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = "CLARA_FAILURE"
)

var (
	// ErrBusy is returned when a session already has a call in flight.
	ErrBusy = errors.New("clara: a message is already being processed")
	// ErrSessionClosed is returned once a session has ended or been disconnected.
	ErrSessionClosed = errors.New("clara: session closed")
)

// Error is a classified chat failure.
type Error struct {
	Kind   Kind
	Status int    // HTTP status to report; 0 means the default for Kind
	Detail string // user-facing detail
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := "clara: " + string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil && e.Detail == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code clients should see for this error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindEmptyInput, KindInvalidInput:
		return http.StatusBadRequest
	case KindProvider, KindEmptyResponse:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether resubmitting the same turn may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindEmptyResponse:
		return true
	case KindProvider:
		return e.Status == http.StatusTooManyRequests || e.Status >= 500
	}
	return false
}

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a classified, retryable failure.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// DetailOf returns the user-facing detail for err.
func DetailOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Detail != "" {
			return ce.Detail
		}
		if ce.Err != nil {
			return ce.Err.Error()
		}
		return string(ce.Kind)
	}
	return err.Error()
}

// truncate shortens upstream error bodies before they reach users.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// transportError classifies a failure that produced no usable HTTP response.
// A call whose context hit its deadline is a timeout; anything else is a
// network failure. Both are retryable.
func transportError(ctx context.Context, provider string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Detail: provider + " request timed out", Err: err}
	}
	return &Error{Kind: KindNetwork, Detail: truncate(err.Error(), 200), Err: err}
}
