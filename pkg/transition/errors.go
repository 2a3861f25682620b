package transition

import "fmt"

// ValidationError names the transition rule a change violated. The rule name
// is stable and machine-readable; the message is for humans.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Message)
}

func newValidationError(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError names the permission rule that blocked the actor.
type AuthorizationError struct {
	Rule    string
	Message string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized (%s): %s", e.Rule, e.Message)
}

func newAuthorizationError(rule, format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// ConflictError surfaces a storage-level uniqueness race as a domain
// "already exists" condition.
type ConflictError struct {
	Rule    string
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict (%s): %s", e.Rule, e.Message)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
