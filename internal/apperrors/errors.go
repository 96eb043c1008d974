// Package apperrors defines the error taxonomy shared by the reservation core.
// Every lock, booking and ledger operation fails with exactly one of these
// sentinels (possibly wrapped); handlers translate them to HTTP statuses and
// callers branch on them with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means at least one requested seat is covered by an active
	// lock or by a booking in pending_payment/confirmed state.
	ErrConflict = errors.New("seat unavailable")

	// ErrExpired means the seat lock lapsed before the operation landed.
	ErrExpired = errors.New("seat lock expired")

	// ErrInvalidState means the requested booking transition is not allowed
	// from the booking's current status.
	ErrInvalidState = errors.New("invalid booking state transition")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTransaction means a ledger entry with this transaction id
	// already exists, or the booking already has a successful payment.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrStoreUnavailable is the only retryable kind: a transient
	// infrastructure failure talking to the store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Unavailable wraps an infrastructure failure so callers can detect it with
// errors.Is(err, ErrStoreUnavailable) and retry with backoff.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Retryable reports whether the caller may retry the failed call as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
