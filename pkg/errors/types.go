// Package errors provides typed errors for the stride project.
//
// This package defines domain-specific error types that provide structured
// error information for different subsystems (config, AI providers, storage,
// board data providers). All error types implement the standard error
// interface and support errors.Is() and errors.As() from the standard
// library and cockroachdb/errors.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// AIError represents AI provider errors.
type AIError struct {
	Provider   string // e.g., "anthropic", "ollama"
	Operation  string // e.g., "Chat", "Enhance"
	StatusCode int    // HTTP status code if applicable
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ai %s %s failed (HTTP %d): %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai %s %s failed: %s", e.Provider, e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// NewAIError creates a new AIError.
func NewAIError(provider, operation, message string) *AIError {
	return &AIError{Provider: provider, Operation: operation, Message: message}
}

// NewAIErrorWithStatus creates a new AIError with HTTP status code.
func NewAIErrorWithStatus(provider, operation string, statusCode int, message string) *AIError {
	retryable := isRetryableHTTPStatus(statusCode)
	return &AIError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// NewAIErrorWithCause creates a new AIError with an underlying cause.
func NewAIErrorWithCause(provider, operation, message string, cause error) *AIError {
	return &AIError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// StoreError represents storage adapter errors.
type StoreError struct {
	Operation string // e.g., "UpsertSnapshot", "SyncAlerts"
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("store %s failed: %s", e.Operation, e.Message)
	}
	return "store error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, message string) *StoreError {
	return &StoreError{Operation: operation, Message: message}
}

// NewStoreErrorWithCause creates a new StoreError with an underlying cause.
func NewStoreErrorWithCause(operation, message string, cause error) *StoreError {
	return &StoreError{
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// DataError represents board data provider errors: a source could not
// supply the snapshots, tasks, or scope metrics an analysis pass needs.
// Missing or null numeric fields are not DataErrors; collectors normalize
// those to zero.
type DataError struct {
	Source  string // e.g., "snapshots", "tasks", "scope"
	BoardID string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.BoardID != "" {
		return fmt.Sprintf("data source %s for board %s failed: %s", e.Source, e.BoardID, e.Message)
	}
	return fmt.Sprintf("data source %s failed: %s", e.Source, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *DataError) Unwrap() error {
	return e.Cause
}

// NewDataError creates a new DataError.
func NewDataError(source, boardID, message string) *DataError {
	return &DataError{Source: source, BoardID: boardID, Message: message}
}

// NewDataErrorWithCause creates a new DataError with an underlying cause.
func NewDataErrorWithCause(source, boardID, message string, cause error) *DataError {
	return &DataError{Source: source, BoardID: boardID, Message: message, Cause: cause}
}

// IsRetryable checks if an error or any error in its chain is retryable.
// It returns true if the error itself is retryable, or if any wrapped error
// is marked as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check AIError
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Retryable
	}

	// Check StoreError
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Retryable
	}

	return false
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsAIError checks if an error or any error in its chain is an AIError.
func IsAIError(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr)
}

// IsStoreError checks if an error or any error in its chain is a StoreError.
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

// IsDataError checks if an error or any error in its chain is a DataError.
func IsDataError(err error) bool {
	var dataErr *DataError
	return errors.As(err, &dataErr)
}

// isRetryableHTTPStatus returns true for HTTP status codes that are typically retryable.
func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Re-export commonly used functions from cockroachdb/errors for convenience.
// This allows consumers to use strideerrors.Wrap() instead of importing two packages.
var (
	// New creates a new error with the given message.
	New = errors.New

	// Newf creates a new error with formatted message.
	Newf = errors.Newf

	// Wrap wraps an error with additional context.
	Wrap = errors.Wrap

	// Wrapf wraps an error with formatted additional context.
	Wrapf = errors.Wrapf

	// Is reports whether any error in err's chain matches target.
	Is = errors.Is

	// As finds the first error in err's chain that matches target.
	As = errors.As

	// Cause returns the root cause of an error.
	Cause = errors.Cause
)
