package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies one case of the closed error taxonomy. Every failure that
// crosses this package's boundary carries exactly one Kind.
type Kind int

const (
	// KindInvalidAPIKey: the credential was rejected upstream (401/403).
	KindInvalidAPIKey Kind = iota + 1
	// KindMissingAPIKey: no credential was configured for the call.
	KindMissingAPIKey
	// KindRateLimitExceeded: quota or rate limit hit (429).
	KindRateLimitExceeded
	// KindInvalidRequest: the request was malformed or targeted a missing
	// resource (400/404), or violated a protocol expectation.
	KindInvalidRequest
	// KindUnsupportedModel: the requested model is not available to the caller.
	KindUnsupportedModel
	// KindModelOverloaded: upstream server-side failure (500/503).
	KindModelOverloaded
	// KindSafetyThresholdExceeded: generation was blocked by safety settings.
	KindSafetyThresholdExceeded
	// KindContentGenerationFailed: the model produced no usable candidates.
	KindContentGenerationFailed
	// KindConnectionError: transport-level fault or an unmapped HTTP status.
	KindConnectionError
	// KindTimeoutError: the call exceeded its deadline.
	KindTimeoutError
	// KindStreamInitializationError: a streaming call failed before any
	// element was received.
	KindStreamInitializationError
	// KindStreamInterrupted: a streaming call failed after zero or more
	// elements were already emitted.
	KindStreamInterrupted
)

// Category groups kinds into the six taxonomy families.
type Category int

const (
	CategoryAuth Category = iota + 1
	CategoryRequest
	CategoryModel
	CategoryContent
	CategoryNetwork
	CategoryStream
)

// Category returns the family a kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindInvalidAPIKey, KindMissingAPIKey:
		return CategoryAuth
	case KindRateLimitExceeded, KindInvalidRequest:
		return CategoryRequest
	case KindUnsupportedModel, KindModelOverloaded:
		return CategoryModel
	case KindSafetyThresholdExceeded, KindContentGenerationFailed:
		return CategoryContent
	case KindConnectionError, KindTimeoutError:
		return CategoryNetwork
	case KindStreamInitializationError, KindStreamInterrupted:
		return CategoryStream
	default:
		return CategoryNetwork
	}
}

func (k Kind) String() string {
	switch k {
	case KindInvalidAPIKey:
		return "invalid_api_key"
	case KindMissingAPIKey:
		return "missing_api_key"
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnsupportedModel:
		return "unsupported_model"
	case KindModelOverloaded:
		return "model_overloaded"
	case KindSafetyThresholdExceeded:
		return "safety_threshold_exceeded"
	case KindContentGenerationFailed:
		return "content_generation_failed"
	case KindConnectionError:
		return "connection_error"
	case KindTimeoutError:
		return "timeout_error"
	case KindStreamInitializationError:
		return "stream_initialization_error"
	case KindStreamInterrupted:
		return "stream_interrupted"
	default:
		return "unknown"
	}
}

func (c Category) String() string {
	switch c {
	case CategoryAuth:
		return "auth"
	case CategoryRequest:
		return "request"
	case CategoryModel:
		return "model"
	case CategoryContent:
		return "content"
	case CategoryNetwork:
		return "network"
	case CategoryStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Error is a classified failure. It is immutable once constructed and
// terminal for the call that produced it: nothing in this layer retries.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// NewError constructs a classified error. cause may be nil.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// Kind returns the taxonomy case.
func (e *Error) Kind() Kind {
	if e == nil {
		return 0
	}
	return e.kind
}

// Message returns the human-readable description without the kind prefix.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.message == "" {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.message
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Classify maps an HTTP status code and response body to a classified error.
// The body is treated as opaque text: if it parses as the standard
// {"error":{"message":...}} envelope the message is lifted out, otherwise
// the raw text is used verbatim.
func Classify(statusCode int, body string) *Error {
	msg := errorMessage(body)
	switch statusCode {
	case 400, 404:
		return NewError(KindInvalidRequest, msg, nil)
	case 401, 403:
		return NewError(KindInvalidAPIKey, msg, nil)
	case 429:
		return NewError(KindRateLimitExceeded, msg, nil)
	case 500, 503:
		return NewError(KindModelOverloaded, msg, nil)
	default:
		if msg == "" {
			return NewError(KindConnectionError, fmt.Sprintf("unexpected status %d", statusCode), nil)
		}
		return NewError(KindConnectionError, fmt.Sprintf("unexpected status %d: %s", statusCode, msg), nil)
	}
}

// ClassifyTransport maps a transport-level fault (connection refused, DNS
// failure, TLS failure, deadline) to a classified error carrying the
// original fault as cause.
func ClassifyTransport(err error) *Error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return NewError(KindTimeoutError, "request timed out", err)
	}
	return NewError(KindConnectionError, err.Error(), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// errorMessage extracts the upstream error message from a JSON error body.
// Falls back to the trimmed raw body for non-JSON payloads.
func errorMessage(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}
	if m := gjson.Get(trimmed, "error.message"); m.Exists() {
		return m.String()
	}
	return trimmed
}
