// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes and logs operation errors with standardized fields.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err to a StandardError, logs it with the operation
// context, and returns the normalized error for the caller to propagate.
func (h *ErrorHandler) Handle(operation, applicationID string, err error) *StandardError {
	stdErr := h.normalizeError(err)
	h.logError(operation, applicationID, stdErr)
	return stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(operation, applicationID string, stdErr *StandardError) {
	h.logger.Error("Operation failed", map[string]interface{}{
		"operation":     operation,
		"applicationId": applicationID,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
