/*
errors.go - Centralized error types for the routine engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Lookup errors - NotFound
  2. Authorization errors - Forbidden (not owner / not member)
  3. Domain rule violations - Conflict, InvalidState, OutOfStock,
     InsufficientPoints, NotEligible
  4. Transient errors - LockTimeout (the only retryable one)
  5. Ledger errors - Duplicate idempotency key

PROPAGATION:
  Domain errors end the current request and are surfaced as-is.
  Only LockTimeout should be retried by callers. Broken internal
  invariants (negative stock) are programming errors and panic via Assert.

USAGE:
  if errors.Is(err, generic.ErrLockTimeout) {
      // retry later
  }

  var ipe *generic.InsufficientPointsError
  if errors.As(err, &ipe) {
      fmt.Println(ipe.Shortfall())
  }

SEE ALSO:
  - lock.go: Produces LockTimeoutError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a routine, group, user or item is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is not the owner or a member.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the request collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyGranted is returned when a reward was granted for the period.
	ErrAlreadyGranted = fmt.Errorf("reward already granted: %w", ErrConflict)

	// ErrAlreadyJoined is returned when a user joins a group twice.
	ErrAlreadyJoined = fmt.Errorf("already joined: %w", ErrConflict)

	// ErrInvalidState is returned when a state transition guard rejects the call.
	ErrInvalidState = errors.New("invalid state")

	// ErrOutOfStock is returned when an item has no remaining stock.
	ErrOutOfStock = errors.New("out of stock")

	// ErrInsufficientPoints is returned when the balance does not cover a price.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrNotEligible is returned when a reward's eligibility check fails.
	ErrNotEligible = errors.New("not eligible")

	// ErrLockTimeout is returned when a keyed lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidPeriod is returned when a period is malformed (end before
	// start) or wider than the operation allows.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string // "routine", "sub_routine", "user", "item"
	ID   string
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidStateError explains which guard rejected a transition.
type InvalidStateError struct {
	Op     string
	Reason string
}

func InvalidState(op, reason string) error {
	return &InvalidStateError{Op: op, Reason: reason}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: invalid state: %s", e.Op, e.Reason)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// InsufficientPointsError provides details about a balance shortage.
type InsufficientPointsError struct {
	UserID    UserID
	Available Amount
	Required  Amount
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %v, required %v",
		e.Available.Value, e.Required.Value)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// Shortfall returns how many points are missing.
func (e *InsufficientPointsError) Shortfall() Amount {
	return e.Required.Sub(e.Available)
}

// LockTimeoutError records which key could not be acquired.
type LockTimeoutError struct {
	Key    LockKey
	Waited time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock %q not acquired within %s", e.Key, e.Waited)
}

func (e *LockTimeoutError) Unwrap() error {
	return ErrLockTimeout
}

// =============================================================================
// INVARIANTS
// =============================================================================

// InvariantViolation is the panic value raised by Assert.
type InvariantViolation struct {
	Message string
}

func (v InvariantViolation) Error() string {
	return "invariant violated: " + v.Message
}

// Assert panics when an internal invariant does not hold.
// Use it for states the engine must never reach, not for user input.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(InvariantViolation{Message: fmt.Sprintf(format, args...)})
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden returns true if the caller lacks ownership or membership.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
