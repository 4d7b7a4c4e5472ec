package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueErrorMessage(t *testing.T) {
	cause := fmt.Errorf("disk full")

	err := NewStorageError(OpPersist, cause)
	assert.Contains(t, err.Error(), "persist operation failed in store component")
	assert.Contains(t, err.Error(), "STORAGE_FAILURE")
	assert.Contains(t, err.Error(), "disk full")

	bare := New(OpEnqueue, cause)
	assert.Equal(t, "enqueue operation failed: disk full", bare.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewApplyError(OpApply, cause)

	assert.True(t, stderrors.Is(err, cause))

	var qErr *QueueError
	assert.True(t, stderrors.As(err, &qErr))
	assert.Equal(t, ErrCodeApplyFailure, qErr.Code)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStorageError(OpPersist, fmt.Errorf("busy"))))
	assert.True(t, IsRetryable(NewNetworkError(OpSyncCycle, fmt.Errorf("offline"))))
	assert.False(t, IsRetryable(NewValidationError(OpEnqueue, fmt.Errorf("bad payload"))))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsRetryableWrapped(t *testing.T) {
	inner := NewApplyError(OpApply, fmt.Errorf("remote 500"))
	wrapped := fmt.Errorf("cycle aborted: %w", inner)

	assert.True(t, IsRetryable(wrapped))
}

func TestWrapOpComponent(t *testing.T) {
	assert.Nil(t, WrapOpComponent(nil, OpPersist, "store"))

	err := WrapOpComponent(fmt.Errorf("boom"), OpPersist, "store")
	var qErr *QueueError
	assert.True(t, stderrors.As(err, &qErr))
	assert.Equal(t, OpPersist, qErr.Op)
	assert.Equal(t, "store", qErr.Component)
}
