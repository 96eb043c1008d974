package service

import (
	"context"
	"errors"

	"cinebook/internal/apperrors"
	"cinebook/internal/clock"
	"cinebook/internal/config"
)

// ErrInvalidArgument marks request validation failures; handlers translate it
// to 400.
var ErrInvalidArgument = errors.New("invalid argument")

// storeMaxAttempts bounds transparent retries of store operations that fail
// with a transient error. Conflicts and state errors are decisive and are
// never retried.
const storeMaxAttempts = 3

func withRetry(ctx context.Context, op func() error, onRetry func()) error {
	var err error
	for attempt := 0; attempt < storeMaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = op(); err == nil || !apperrors.Retryable(err) {
			return err
		}
		if onRetry != nil && attempt < storeMaxAttempts-1 {
			onRetry()
		}
	}
	return err
}

// Services bundles the application services behind one constructor.
type Services struct {
	Locks     *LockService
	Bookings  *BookingService
	Ledger    *LedgerService
	Showtimes *ShowtimeService
}

type Deps struct {
	Locks     LockStore
	Bookings  BookingStore
	Ledger    LedgerStore
	Showtimes ShowtimeCatalog
	Users     UserDirectory
	Publisher EventPublisher
	Gateway   PaymentGateway
	Clock     clock.Clock
	LockCfg   config.LockConfig
}

func New(deps Deps) *Services {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}

	locks := NewLockService(deps.Locks, deps.Clock, deps.LockCfg)
	ledger := NewLedgerService(deps.Ledger, deps.Bookings, deps.Clock)
	bookings := NewBookingService(deps)
	showtimes := NewShowtimeService(deps.Showtimes)

	return &Services{
		Locks:     locks,
		Bookings:  bookings,
		Ledger:    ledger,
		Showtimes: showtimes,
	}
}
