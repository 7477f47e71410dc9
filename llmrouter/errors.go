package llmrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode tags a ModelError with its failure class. Codes are carried as
// values rather than distinct error types so callers can switch on them.
type ErrorCode string

const (
	CodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_ERROR"
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	CodeModelNotFound  ErrorCode = "MODEL_NOT_FOUND"
	CodeContextLength  ErrorCode = "CONTEXT_LENGTH_EXCEEDED"
	CodeContentFilter  ErrorCode = "CONTENT_FILTER"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeNetwork        ErrorCode = "NETWORK_ERROR"
	CodeCancelled      ErrorCode = "CANCELLED"
	CodeUnknown        ErrorCode = "UNKNOWN_ERROR"
)

// ModelError is the error type surfaced by adapters and the Manager.
type ModelError struct {
	Code       ErrorCode
	Provider   string
	Message    string
	StatusCode int
	Cause      error
}

func (e *ModelError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ModelError) Unwrap() error {
	return e.Cause
}

// NewModelError creates a ModelError with the given code.
func NewModelError(code ErrorCode, provider, message string, cause error) *ModelError {
	return &ModelError{Code: code, Provider: provider, Message: message, Cause: cause}
}

// CodeOf returns the error code carried by err, or CodeUnknown if err carries
// none. Context sentinels are recognized so plain ctx.Err() values classify
// the same way adapter errors do.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var me *ModelError
	if errors.As(err, &me) {
		return me.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}
	return CodeUnknown
}

// IsRetryable reports whether err is safe to retry. Only rate limits and
// transient network failures qualify; CANCELLED is never retried.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeRateLimit, CodeNetwork:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether err is a cancellation, from either an adapter
// or a context sentinel.
func IsCancelled(err error) bool {
	return CodeOf(err) == CodeCancelled
}

// ErrorFromStatusCode maps an HTTP status code to a ModelError.
func ErrorFromStatusCode(statusCode int, provider, message string) *ModelError {
	code := CodeUnknown
	switch statusCode {
	case 400, 422:
		code = CodeInvalidRequest
	case 401, 403:
		code = CodeAuthentication
	case 404:
		code = CodeModelNotFound
	case 408:
		code = CodeTimeout
	case 413:
		code = CodeContextLength
	case 429:
		code = CodeRateLimit
	case 500, 502, 503, 504:
		code = CodeNetwork
	}
	return &ModelError{Code: code, Provider: provider, Message: message, StatusCode: statusCode}
}

// Classify wraps an arbitrary error from a provider SDK into a ModelError.
// Context cancellation takes priority over every other classification; an
// error that is already a ModelError passes through untouched.
func Classify(err error, provider string) *ModelError {
	if err == nil {
		return nil
	}
	var me *ModelError
	if errors.As(err, &me) {
		return me
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ModelError{Code: CodeCancelled, Provider: provider, Message: "request cancelled", Cause: err}
	}
	return &ModelError{
		Code:     classifyMessage(err.Error()),
		Provider: provider,
		Message:  err.Error(),
		Cause:    err,
	}
}

// classifyMessage assigns a code by sniffing the error text. Provider SDKs
// and gollm do not expose a shared error shape, so text matching is the
// common denominator.
func classifyMessage(msg string) ErrorCode {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid key") ||
		strings.Contains(lower, "authentication"):
		return CodeAuthentication
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") || strings.Contains(lower, "overloaded"):
		return CodeRateLimit
	case strings.Contains(lower, "404") || strings.Contains(lower, "model not found") ||
		strings.Contains(lower, "does not exist") || strings.Contains(lower, "unknown model"):
		return CodeModelNotFound
	case strings.Contains(lower, "context length") || strings.Contains(lower, "context window") ||
		strings.Contains(lower, "too many tokens") || strings.Contains(lower, "maximum context"):
		return CodeContextLength
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "content policy") ||
		strings.Contains(lower, "safety"):
		return CodeContentFilter
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "deadline exceeded"):
		return CodeTimeout
	case strings.Contains(lower, "400") || strings.Contains(lower, "422") ||
		strings.Contains(lower, "invalid request") || strings.Contains(lower, "bad request"):
		return CodeInvalidRequest
	case strings.Contains(lower, "500") || strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "504") ||
		strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "network") ||
		strings.Contains(lower, "internal server"):
		return CodeNetwork
	default:
		return CodeUnknown
	}
}
