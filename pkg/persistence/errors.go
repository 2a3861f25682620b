// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations must use.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrStageNotFound        = errors.New("stage not found")
	ErrRequestNotFound      = errors.New("status change request not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrExecutionNotFound    = errors.New("workflow execution not found")
	ErrResumeJobNotFound    = errors.New("workflow resume job not found")

	// ErrDuplicatePendingRequest indicates a pending request already exists
	// for the same (entity, target stage) pair.
	ErrDuplicatePendingRequest = errors.New("pending request already exists for this target stage")

	// ErrDuplicateExecution indicates a ledger row with the same dedupe key
	// already exists.
	ErrDuplicateExecution = errors.New("execution already exists for this dedupe key")

	// ErrDuplicateResumeJob indicates a resume job already exists for the
	// same (execution, task) pair.
	ErrDuplicateResumeJob = errors.New("resume job already exists")

	// ErrResumeJobAlreadyProcessed indicates the job was claimed by another
	// worker.
	ErrResumeJobAlreadyProcessed = errors.New("resume job already processed")
)

// IsConflict reports whether the error is one of the unique-constraint races
// the storage layer resolves.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicatePendingRequest) ||
		errors.Is(err, ErrDuplicateExecution) ||
		errors.Is(err, ErrDuplicateResumeJob) ||
		errors.Is(err, ErrResumeJobAlreadyProcessed)
}

// IsNotFound reports whether the error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrEntityNotFound) ||
		errors.Is(err, ErrStageNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrResumeJobNotFound)
}

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op  string // Operation being performed (e.g., "GetByID", "Save")
	Key string // Identifier of the record if applicable
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Key, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new storage error with context.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}
