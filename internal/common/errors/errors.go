// Package errors provides standardized error handling for the financing core.
package errors

import (
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
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeGuardViolation      ErrorCode = "GUARD_VIOLATION"
	ErrCodeDocumentNotVerified ErrorCode = "DOCUMENT_NOT_VERIFIED"
	ErrCodeReasonRequired      ErrorCode = "REASON_REQUIRED"
	ErrCodeTermsLocked         ErrorCode = "TERMS_LOCKED"

	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeDocumentNotFound    ErrorCode = "DOCUMENT_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"

	ErrCodeGatewayUnavailable     ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodeGatewayTimeout         ErrorCode = "GATEWAY_TIMEOUT"
	ErrCodeSessionOpenFailed      ErrorCode = "SESSION_OPEN_FAILED"
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeReconciliationConflict ErrorCode = "RECONCILIATION_CONFLICT"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the error code from err, or "" when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Financing input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGuardViolationError creates a non-retryable lifecycle guard error.
func NewGuardViolationError(action, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGuardViolation,
		Message:   fmt.Sprintf("Transition '%s' not permitted", action),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotVerifiedError creates a non-retryable approval guard error.
func NewDocumentNotVerifiedError(documentType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotVerified,
		Message:   "Approval requires all documents verified",
		Details:   fmt.Sprintf("documentType: %s", documentType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReasonRequiredError creates a non-retryable missing-reason error.
func NewReasonRequiredError(action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReasonRequired,
		Message:   "A human-readable reason is required",
		Details:   fmt.Sprintf("action: %s", action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTermsLockedError creates a non-retryable terms mutation error.
func NewTermsLockedError(status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTermsLocked,
		Message:   "Financing terms can only change while in draft",
		Details:   fmt.Sprintf("status: %s", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotFoundError creates a non-retryable document lookup error.
func NewDocumentNotFoundError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Document not found on application",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable query error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayUnavailableError creates a retryable bank gateway error.
func NewGatewayUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayUnavailable,
		Message:   "Bank gateway error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGatewayTimeoutError creates a retryable bank gateway timeout error.
func NewGatewayTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGatewayTimeout,
		Message:   "Bank gateway timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionOpenFailedError creates a retryable session open error. The
// handshake stays in confirming so the user can retry.
func NewSessionOpenFailedError(applicationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionOpenFailed,
		Message:   "Could not open bank activation session",
		Details:   fmt.Sprintf("applicationId: %s, error: %s", applicationID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError creates a retryable session persistence error.
func NewSessionStoreFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Bank session store error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewReconciliationConflictError marks a bank confirmation that arrived after
// the application already moved past bank approval. Callers treat it as a
// benign duplicate and perform no mutation.
func NewReconciliationConflictError(applicationID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReconciliationConflict,
		Message:   "Bank confirmation already reconciled",
		Details:   fmt.Sprintf("applicationId: %s, status: %s", applicationID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeGatewayUnavailable,
		ErrCodeSessionOpenFailed,
		ErrCodeSessionStoreFailed:
		return 3 // Retryable technical errors

	case ErrCodeGatewayTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "GATEWAY") || strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "RECONCILIATION"):
		return "BANK"
	case strings.Contains(codeStr, "GUARD") || strings.Contains(codeStr, "REASON") || strings.Contains(codeStr, "TERMS"):
		return "LIFECYCLE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "VERIFIED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	default:
		return "OTHER"
	}
}
