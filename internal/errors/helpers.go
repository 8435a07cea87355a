package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewGraphError creates an error for a failed Graph API call. Server-side
// and throttling failures are marked retryable so the backoff layer can
// have another go at them.
func NewGraphError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeGraphAPI, "graph API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode).
		WithUserMessage("The chat service is unavailable")

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewUnsupportedContentError reports a hosted-content reference whose
// surrounding HTML tag is not recognized. Fatal to the export.
func NewUnsupportedContentError(tag, contentID string) *AppError {
	return New(ErrCodeUnsupportedContent, fmt.Sprintf("unsupported content type for tag %q", tag)).
		WithContext("tag", tag).
		WithContext("content_id", contentID).
		WithUserMessage("The chat contains content this exporter cannot handle")
}

// NewCyclicReferenceError reports a reply chain that revisits a message.
func NewCyclicReferenceError(messageID string) *AppError {
	return New(ErrCodeCyclicReference, fmt.Sprintf("cyclic reply reference to message %s", messageID)).
		WithContext("message_id", messageID).
		WithUserMessage("The chat contains a cyclic reply chain")
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}
