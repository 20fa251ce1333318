// Package errors provides the standardized error taxonomy for the application wizard.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Generative text collaborator
	ErrCodeGenAIMissingCredentials ErrorCode = "GENAI_MISSING_CREDENTIALS"
	ErrCodeGenAIAuthFailed         ErrorCode = "GENAI_AUTH_FAILED"
	ErrCodeGenAIRateLimited        ErrorCode = "GENAI_RATE_LIMITED"
	ErrCodeGenAITimeout            ErrorCode = "GENAI_TIMEOUT"
	ErrCodeGenAIUnavailable        ErrorCode = "GENAI_UNAVAILABLE"
	ErrCodeGenAIRequestRejected    ErrorCode = "GENAI_REQUEST_REJECTED"
	ErrCodeGenAIMalformedResponse  ErrorCode = "GENAI_MALFORMED_RESPONSE"

	// Submission collaborator
	ErrCodeSubmissionNetworkFailed ErrorCode = "SUBMISSION_NETWORK_FAILED"
	ErrCodeSubmissionServerFailed  ErrorCode = "SUBMISSION_SERVER_FAILED"
	ErrCodeSubmissionRejected      ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeSubmissionInProgress    ErrorCode = "SUBMISSION_IN_PROGRESS"

	// Local state
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeInvalidPatch      ErrorCode = "INVALID_PATCH"
	ErrCodeAssistUnavailable ErrorCode = "ASSIST_UNAVAILABLE"

	ErrCodeUnhandledRuntime ErrorCode = "UNHANDLED_RUNTIME"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewGenAIMissingCredentialsError is fatal: no request is attempted.
func NewGenAIMissingCredentialsError() *StandardError {
	return newError(ErrCodeGenAIMissingCredentials,
		"AI service is not configured. Please contact support.",
		"API key not found", false)
}

func NewGenAIAuthFailedError(details string) *StandardError {
	return newError(ErrCodeGenAIAuthFailed,
		"AI service authentication failed. Please contact support.",
		details, false)
}

func NewGenAIRateLimitedError(details string) *StandardError {
	return newError(ErrCodeGenAIRateLimited,
		"AI service is busy right now. Please try again in a moment.",
		details, true)
}

func NewGenAITimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeGenAITimeout,
		"AI service took too long to respond. Please try again.",
		fmt.Sprintf("timeout: %s", timeout), true)
}

// NewGenAIUnavailableError covers network failures and 5xx responses.
func NewGenAIUnavailableError(err error) *StandardError {
	return newError(ErrCodeGenAIUnavailable,
		"Unable to reach the AI service. Please check your connection and try again.",
		errDetails(err), true)
}

func NewGenAIRequestRejectedError(status int, details string) *StandardError {
	return newError(ErrCodeGenAIRequestRejected,
		"The AI service rejected the request.",
		fmt.Sprintf("status: %d, %s", status, details), false).WithMetadata("status", status)
}

func NewGenAIMalformedResponseError(details string) *StandardError {
	return newError(ErrCodeGenAIMalformedResponse,
		"The AI service returned an unexpected response.",
		details, false)
}

func NewSubmissionNetworkError(err error) *StandardError {
	return newError(ErrCodeSubmissionNetworkFailed,
		"Network error. Please check your connection and try again.",
		errDetails(err), true)
}

func NewSubmissionServerError(status int, details string) *StandardError {
	return newError(ErrCodeSubmissionServerFailed,
		"Server error. Please try again later.",
		fmt.Sprintf("status: %d, %s", status, details), true).WithMetadata("status", status)
}

// NewSubmissionRejectedError keeps the server-provided message when there is one.
func NewSubmissionRejectedError(status int, serverMessage string) *StandardError {
	msg := serverMessage
	if strings.TrimSpace(msg) == "" {
		msg = "The application was rejected. Please review your answers and try again."
	}
	return newError(ErrCodeSubmissionRejected, msg,
		fmt.Sprintf("status: %d", status), false).WithMetadata("status", status)
}

func NewSubmissionInProgressError() *StandardError {
	return newError(ErrCodeSubmissionInProgress,
		"A submission is already in progress.", "", false)
}

func NewPersistenceFailedError(op string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed,
		"Failed to save your progress locally.",
		fmt.Sprintf("op: %s, error: %s", op, errDetails(err)), false)
}

func NewInvalidPatchError(details string) *StandardError {
	return newError(ErrCodeInvalidPatch, "Invalid form update", details, false)
}

func NewAssistUnavailableError(details string) *StandardError {
	return newError(ErrCodeAssistUnavailable,
		"AI help is not available for this field yet.", details, false)
}

func NewUnhandledRuntimeError(recovered interface{}) *StandardError {
	return newError(ErrCodeUnhandledRuntime,
		"Something went wrong. Please reload or go back to the start.",
		fmt.Sprintf("%v", recovered), false)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Classification
// ==========================

// AsStandard unwraps err into a StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always yields a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false)
}

// IsRetryable reports whether err is a transient service error.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Retryable
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "GENAI"), strings.HasPrefix(codeStr, "ASSIST"):
		return "AI"
	case strings.HasPrefix(codeStr, "SUBMISSION"):
		return "SUBMISSION"
	case codeStr == string(ErrCodePersistenceFailed):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "PATCH"):
		return "VALIDATION"
	case codeStr == string(ErrCodeUnhandledRuntime):
		return "RUNTIME"
	default:
		return "OTHER"
	}
}

// messageKeys maps codes to i18n keys understood by the presentation layer.
var messageKeys = map[ErrorCode]string{
	ErrCodeGenAIMissingCredentials: "error.configureKey",
	ErrCodeGenAIAuthFailed:         "error.openAIInvalidKey",
	ErrCodeGenAIRateLimited:        "error.rateLimited",
	ErrCodeGenAITimeout:            "error.timeout",
	ErrCodeGenAIUnavailable:        "error.network",
	ErrCodeGenAIRequestRejected:    "error.aiRejected",
	ErrCodeGenAIMalformedResponse:  "error.invalidResponse",
	ErrCodeSubmissionNetworkFailed: "error.network",
	ErrCodeSubmissionServerFailed:  "error.server",
	ErrCodeSubmissionRejected:      "error.validation",
	ErrCodeSubmissionInProgress:    "error.submitting",
	ErrCodePersistenceFailed:       "error.storage",
	ErrCodeInvalidPatch:            "error.validation",
	ErrCodeAssistUnavailable:       "error.aiUnavailable",
	ErrCodeUnhandledRuntime:        "error.unknown",
}

// MessageKey returns the i18n key for err.
func MessageKey(err error) string {
	if key, ok := messageKeys[Normalize(err).Code]; ok {
		return key
	}
	return "error.unknown"
}

// UserMessage converts any error into text that can be shown to the applicant.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr := Normalize(err)
	if stdErr.Code == ErrCodeInternal {
		return "An unexpected error occurred. Please try again."
	}
	return stdErr.Message
}
