package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeProvider   ErrorType = "provider"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes
const (
	ErrCodeFileNotFound      = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable   = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeMissingAPIKey     = "MISSING_API_KEY"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodeProviderFailed    = "PROVIDER_FAILED"
	ErrCodeRetryExhausted    = "RETRY_EXHAUSTED"
	ErrCodeMalformedAnalysis = "MALFORMED_ANALYSIS"
	ErrCodeStageFailed       = "STAGE_FAILED"
)

// AppError represents a structured application error.
// Retryable is decided once where the error is created and is never
// re-derived from the message downstream.
type AppError struct {
	Type      ErrorType      `json:"type"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Cause     error          `json:"cause,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// NewProviderError wraps a failure reported by an upstream text-generation
// provider. retryable marks upstream throttling.
func NewProviderError(provider, message string, retryable bool, cause error) *AppError {
	err := newAppError(ErrorTypeProvider, ErrCodeProviderFailed, message, cause)
	err.Retryable = retryable
	return err.WithContext("provider", provider)
}

// NewRetryExhaustedError reports a provider that kept throttling after
// attempts calls.
func NewRetryExhaustedError(provider string, attempts int, cause error) *AppError {
	msg := fmt.Sprintf("%s still throttled after %d attempts", provider, attempts)
	return newAppError(ErrorTypeProvider, ErrCodeRetryExhausted, msg, cause).
		WithContext("provider", provider).
		WithContext("attempts", attempts)
}

// NewMalformedAnalysisError reports analysis output that could not be decoded.
// The cause carries the decoder diagnostic.
func NewMalformedAnalysisError(cause error) *AppError {
	return newAppError(ErrorTypeExtraction, ErrCodeMalformedAnalysis,
		"malformed analysis output", cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the first AppError in err's chain is marked retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsType reports whether the first AppError in err's chain has the given type.
func IsType(err error, typ ErrorType) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Type == typ
}
