// internal/common/errors/errors.go

// Package errors provides the structured error taxonomy used by the loan
// conversation core, its adapters and the workflow job handlers.
package errors

import (
	stderrors "errors"
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
	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvariantViolation  ErrorCode = "INVARIANT_VIOLATION"

	ErrCodeExternalService       ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeDocumentRenderFailed  ErrorCode = "DOCUMENT_RENDER_FAILED"
	ErrCodeDocumentStoreFailed   ErrorCode = "DOCUMENT_STORE_FAILED"
	ErrCodeTextGenerationFailed  ErrorCode = "TEXT_GENERATION_FAILED"
	ErrCodeTextGenerationTimeout ErrorCode = "TEXT_GENERATION_TIMEOUT"
	ErrCodeNotificationFailed    ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeAuditWriteFailed ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeIndexWriteFailed ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
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

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so sentinel values work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrNotFound           = &StandardError{Code: ErrCodeApplicationNotFound}
	ErrValidation         = &StandardError{Code: ErrCodeValidationFailed}
	ErrInvariantViolation = &StandardError{Code: ErrCodeInvariantViolation}
	ErrRenderFailed       = &StandardError{Code: ErrCodeDocumentRenderFailed}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewNotFoundError reports an unknown application identifier.
func NewNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

// NewValidationError reports malformed caller input.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Request validation failed", details, false, nil)
}

// NewInvariantViolationError reports a programming error such as an unknown status.
func NewInvariantViolationError(details string) *StandardError {
	return newError(ErrCodeInvariantViolation, "Invariant violation", details, false, nil)
}

// NewExternalServiceError wraps a failure of a named collaborator.
func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service),
		errString(err), true, err)
}

// NewDocumentRenderFailedError is fatal to the completion turn.
func NewDocumentRenderFailedError(err error) *StandardError {
	return newError(ErrCodeDocumentRenderFailed, "Sanction document rendering failed",
		errString(err), true, err)
}

// NewDocumentStoreFailedError reports an upload failure.
func NewDocumentStoreFailedError(key string, err error) *StandardError {
	return newError(ErrCodeDocumentStoreFailed, "Sanction document upload failed",
		fmt.Sprintf("key: %s, error: %s", key, errString(err)), true, err)
}

// NewTextGenerationFailedError is retryable; callers fall back to canned text.
func NewTextGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeTextGenerationFailed, "Text generation API error", errString(err), true, err)
}

// NewTextGenerationTimeoutError is retryable; callers fall back to canned text.
func NewTextGenerationTimeoutError() *StandardError {
	return newError(ErrCodeTextGenerationTimeout, "Text generation timeout",
		"call exceeded timeout threshold", true, nil)
}

// NewNotificationFailedError reports email or SMS delivery failure.
func NewNotificationFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, errString(err)), true, err)
}

// NewStoreUnavailableError wraps repository backend failures.
func NewStoreUnavailableError(err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Application store unavailable", errString(err), true, err)
}

// NewAuditWriteFailedError wraps audit log insert failures.
func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Audit log write failed", errString(err), true, err)
}

// NewIndexWriteFailedError wraps transcript indexing failures.
func NewIndexWriteFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexWriteFailed, "Transcript indexing failed",
		fmt.Sprintf("index: %s, error: %s", index, errString(err)), true, err)
}

// NewTimeoutError wraps a deadline hit on a named service.
func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), errString(err), true, err)
}

// NewInternalError wraps anything unclassified.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errString(err), false, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeApplicationNotFound:   "APPLICATION_NOT_FOUND",
	ErrCodeValidationFailed:      "VALIDATION_FAILED",
	ErrCodeInvariantViolation:    "INVARIANT_VIOLATION",
	ErrCodeExternalService:       "EXTERNAL_SERVICE_ERROR",
	ErrCodeDocumentRenderFailed:  "DOCUMENT_RENDER_FAILED",
	ErrCodeDocumentStoreFailed:   "DOCUMENT_RENDER_FAILED",
	ErrCodeTextGenerationFailed:  "TEXT_GENERATION_FAILED",
	ErrCodeTextGenerationTimeout: "TEXT_GENERATION_FAILED",
	ErrCodeNotificationFailed:    "NOTIFICATION_SEND_FAILED",
	ErrCodeStoreUnavailable:      "STORE_UNAVAILABLE",
	ErrCodeTimeout:               "TIMEOUT_ERROR",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodeExternalService,
		ErrCodeNotificationFailed,
		ErrCodeAuditWriteFailed,
		ErrCodeIndexWriteFailed:
		return 3

	case ErrCodeDocumentRenderFailed,
		ErrCodeDocumentStoreFailed,
		ErrCodeTimeout:
		return 2

	case ErrCodeTextGenerationFailed,
		ErrCodeTextGenerationTimeout:
		return 1

	default:
		return 0 // not found, validation, invariant: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err to a *StandardError if one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always returns a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code of err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "DOCUMENT"):
		return "DOCUMENT"
	case strings.Contains(codeStr, "TEXT_GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "AUDIT") || strings.Contains(codeStr, "INDEX"):
		return "STORAGE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVARIANT"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
