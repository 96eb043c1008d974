package service

import (
	"context"
	"time"

	"cinebook/internal/external"
	"cinebook/internal/models"
)

// The services talk to storage through these interfaces. The repository
// package provides the Postgres implementations; tests substitute in-memory
// ones with the same conflict semantics.

type LockStore interface {
	Acquire(ctx context.Context, lock *models.SeatLock, now time.Time) error
	Release(ctx context.Context, lockID string, now time.Time) (bool, error)
	Extend(ctx context.Context, lockID string, expiresAt, now time.Time) error
	GetByID(ctx context.Context, lockID string) (*models.SeatLock, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]models.SeatLock, error)
}

type BookingStore interface {
	Reserve(ctx context.Context, booking *models.Booking, lock *models.SeatLock, now time.Time) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Booking, error)
	Confirm(ctx context.Context, bookingID, transactionID string, now time.Time) (*models.Booking, models.BookingStatus, error)
	Cancel(ctx context.Context, bookingID, reason string, now time.Time) (*models.Booking, models.BookingStatus, error)
	Expire(ctx context.Context, bookingID string, now time.Time) (*models.Booking, error)
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	MarkRefundPending(ctx context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error)
	MarkRefunded(ctx context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error)
}

type LedgerStore interface {
	RecordAttempt(ctx context.Context, entry *models.TransactionLog, now time.Time) error
	RecordResult(ctx context.Context, transactionID string, status models.TransactionStatus, gatewayResponse models.Payload, failureReason *string, now time.Time) (*models.TransactionLog, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.TransactionLog, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.TransactionLog, error)
}

type ShowtimeCatalog interface {
	GetByID(ctx context.Context, id string) (*models.Showtime, error)
	Search(ctx context.Context, query, cinemaID, date string, page, pageSize int) ([]models.Showtime, error)
	Index(ctx context.Context, showtime *models.Showtime) error
	Count(ctx context.Context, query, cinemaID, date string) (int64, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// EventPublisher fans lifecycle events out to the message bus. Publishing is
// best-effort: a bus outage never fails the state change that triggered it.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// PaymentGateway abstracts the external gateway client for tests.
type PaymentGateway interface {
	InitPayment(amount int64, orderID, currency, description string) (*external.PaymentInitResponse, error)
	RefundPayment(paymentID string, amount int64) error
	CancelPayment(paymentID, reason string) error
}
