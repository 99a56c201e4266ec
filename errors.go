package gatekit

import (
	"errors"
	"fmt"
)

// Sentinel errors for GateKit operations.
var (
	// ErrPermissionDenied is returned when the caller lacks the admin role,
	// capability, or ownership required by an operation.
	ErrPermissionDenied = errors.New("gatekit: permission denied")

	// ErrNotFound is returned when an entry required to exist is absent
	// (capability record, limiter config, uninitialized ledger).
	ErrNotFound = errors.New("gatekit: not found")

	// ErrAlreadyExists is returned when initializing a registry, ledger, or
	// limiter that was already initialized.
	ErrAlreadyExists = errors.New("gatekit: already exists")

	// ErrRateLimited is returned by RequireAccess when a cooldown or window
	// limit is violated.
	ErrRateLimited = errors.New("gatekit: rate limited")

	// ErrInvalidArgument is returned on malformed input, such as a renounce
	// self-confirmation mismatch or an unknown capability kind.
	ErrInvalidArgument = errors.New("gatekit: invalid argument")

	// ErrPaused is returned by Guard when the account's pause gate is set.
	ErrPaused = errors.New("gatekit: account paused")

	// ErrNoActorID is returned when an actor ID is required for audit but
	// missing from context.
	ErrNoActorID = errors.New("gatekit: no actor ID in context")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("gatekit: database error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err      error  // Underlying sentinel error
	Message  string // Additional context
	Account  string // Owning account involved
	Role     string // Role involved (if applicable)
	Kind     string // Capability kind involved (if applicable)
	Identity string // Identity involved (if applicable)
	ActorID  string // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithAccount adds the owning account to the error.
func (e *Error) WithAccount(account string) *Error {
	e.Account = account
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(role string) *Error {
	e.Role = role
	return e
}

// WithKind adds the capability kind to the error.
func (e *Error) WithKind(kind string) *Error {
	e.Kind = kind
	return e
}

// WithIdentity adds identity information to the error.
func (e *Error) WithIdentity(identity string) *Error {
	e.Identity = identity
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsPermissionDenied checks if an error is an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound checks if an error is due to a missing entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is due to a double initialize.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsRateLimited checks if an error is a cooldown or window violation.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsInvalidArgument checks if an error is due to malformed input.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsPaused checks if an error came from the pause gate.
func IsPaused(err error) bool {
	return errors.Is(err, ErrPaused)
}
