// Package errors provides structured error types for the offline queue and
// sync orchestrator.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeApplyFailure      ErrorCode = "APPLY_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
)

// Operation represents the queue or sync operation during which an error occurred
type Operation string

const (
	OpEnqueue       Operation = "enqueue"
	OpDequeue       Operation = "dequeue"
	OpMarkCompleted Operation = "mark_completed"
	OpMarkFailed    Operation = "mark_failed"
	OpPersist       Operation = "persist"
	OpRestore       Operation = "restore"
	OpApply         Operation = "apply"
	OpSyncCycle     Operation = "sync_cycle"
	OpClose         Operation = "close"
)

// QueueError represents an error raised inside the queue or orchestrator
type QueueError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "queue", "orchestrator", "store")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *QueueError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage-related QueueError
func NewStorageError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: true,
	}
}

// NewApplyError creates a new QueueError for a failed remote apply
func NewApplyError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeApplyFailure,
		Op:        op,
		Component: "orchestrator",
		Err:       cause,
		Retryable: true,
	}
}

// NewNetworkError creates a new network-related QueueError
func NewNetworkError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "connectivity",
		Err:       cause,
		Retryable: true,
	}
}

// NewValidationError creates a new validation-related QueueError
func NewValidationError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// New creates a new QueueError
func New(op Operation, err error) *QueueError {
	return &QueueError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new QueueError with component information
func NewWithComponent(op Operation, component string, err error) *QueueError {
	return &QueueError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable checks if an error is a retryable QueueError
func IsRetryable(err error) bool {
	var qErr *QueueError
	if errors.As(err, &qErr) {
		return qErr.Retryable
	}
	return false
}
