package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
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

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates a missing session or invalid token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrAuthAPI is a rejection from the Session Store auth endpoints
// (bad credentials, duplicate sign-up, invalid refresh token).
type ErrAuthAPI struct {
	Status  int
	Code    string
	Message string
}

func (e *ErrAuthAPI) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("auth request rejected with status %d", e.Status)
}

// Credential reports a 4xx rejection, which must not be retried.
func (e *ErrAuthAPI) Credential() bool {
	return e.Status >= 400 && e.Status < 500
}

// IsAlreadyRegistered reports whether err is the duplicate sign-up rejection.
func IsAlreadyRegistered(err error) bool {
	var apiErr *ErrAuthAPI
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "user_already_exists" ||
		strings.Contains(apiErr.Message, "User already registered")
}

// ErrStateClosed is returned by the auth state coordinator after shutdown.
var ErrStateClosed = errors.New("auth state closed")
