package domain

import "fmt"

// Error types for consistent error handling across the gateway.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates an operation would violate the one-to-one
// matching invariant or another uniqueness constraint.
type ErrConflict struct {
	Resource string
	ID       string
	Message  string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.ID)
}

// ErrValidation indicates an invalid argument (unknown id, malformed
// amount/date, confidence out of range).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrSessionClosed indicates a mutation was attempted on a finalized
// reconciliation session.
type ErrSessionClosed struct {
	SessionID string
}

func (e *ErrSessionClosed) Error() string {
	return fmt.Sprintf("reconciliation session closed: %s", e.SessionID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrUnauthorized indicates an invalid or missing token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
