package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(ErrDuplicatePendingRequest))
	assert.True(t, IsConflict(ErrDuplicateExecution))
	assert.True(t, IsConflict(ErrDuplicateResumeJob))
	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", ErrDuplicateExecution)))
	assert.False(t, IsConflict(ErrEntityNotFound))
	assert.False(t, IsConflict(errors.New("other")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrEntityNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrWorkflowNotFound)))
	assert.False(t, IsNotFound(ErrDuplicateExecution))
}

func TestStoreError(t *testing.T) {
	err := NewStoreError("GetByID", "case-1", ErrEntityNotFound)

	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "case-1")
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.True(t, IsNotFound(err))
}
