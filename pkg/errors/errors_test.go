package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheError_Error(t *testing.T) {
	// Arrange
	wrapped := stderrors.New("connection refused")

	// Act
	err := NewWorkerExecution("flush failed", wrapped)

	// Assert
	assert.Contains(t, err.Error(), "WORKER_EXECUTION")
	assert.Contains(t, err.Error(), "flush failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCacheError_Unwrap(t *testing.T) {
	// Arrange
	cause := stderrors.New("backend down")
	err := NewResolution("cannot resolve", cause)

	// Assert
	assert.True(t, stderrors.Is(err, cause))
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsStoreCapability(NewStoreCapability("no tags")))
	assert.True(t, IsResolution(NewResolution("orphan", nil)))
	assert.True(t, IsPartialInvalidation(NewPartialInvalidation("partial", []int64{7}, nil)))
	assert.True(t, IsSchedulingConflict(NewSchedulingConflict("lock held")))
	assert.True(t, IsWorkerExecution(NewWorkerExecution("exhausted", nil)))

	assert.False(t, IsPartialInvalidation(NewStoreCapability("no tags")))
	assert.False(t, IsResolution(stderrors.New("plain")))
	assert.False(t, IsResolution(nil))
}

func TestFailedIDs(t *testing.T) {
	// Arrange
	err := NewPartialInvalidation("some shards failed", []int64{3, 9}, nil)

	// Act
	ids := FailedIDs(err)

	// Assert
	assert.Equal(t, []int64{3, 9}, ids)
	assert.Nil(t, FailedIDs(stderrors.New("plain")))
}

func TestWrap_PreservesTypeAndFailedIDs(t *testing.T) {
	// Arrange
	inner := NewPartialInvalidation("some shards failed", []int64{5}, nil)

	// Act
	wrapped := Wrap(inner, "during flush")

	// Assert
	require.True(t, IsPartialInvalidation(wrapped))
	assert.Equal(t, []int64{5}, FailedIDs(wrapped))
	assert.Contains(t, wrapped.Error(), "during flush")
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	// Act
	wrapped := Wrap(stderrors.New("boom"), "context")

	// Assert
	var cacheErr *CacheError
	require.True(t, stderrors.As(wrapped, &cacheErr))
	assert.Equal(t, ErrorTypeInternal, cacheErr.Type)
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}
