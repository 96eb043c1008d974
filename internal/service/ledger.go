package service

import (
	"context"
	"fmt"

	"cinebook/internal/apperrors"
	"cinebook/internal/clock"
	"cinebook/internal/models"
)

// LedgerService records payment attempts and exposes the audit trail. The
// transaction id is the idempotency key end to end: the gateway retrying a
// webhook or a client retrying an attempt never produces a second row.
type LedgerService struct {
	ledger   LedgerStore
	bookings BookingStore
	clock    clock.Clock
}

func NewLedgerService(ledger LedgerStore, bookings BookingStore, clk clock.Clock) *LedgerService {
	return &LedgerService{ledger: ledger, bookings: bookings, clock: clk}
}

// RecordAttempt opens a pending ledger entry for a payment attempt against an
// existing booking.
func (s *LedgerService) RecordAttempt(ctx context.Context, req models.RecordAttemptRequest) (*models.TransactionLog, error) {
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidArgument, req.PaymentMethod)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidArgument)
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", req.BookingID, apperrors.ErrNotFound)
	}

	entry := &models.TransactionLog{
		TransactionID:  req.TransactionID,
		BookingID:      req.BookingID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	}
	if err := s.ledger.RecordAttempt(ctx, entry, s.clock.Now()); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns one ledger entry by transaction id.
func (s *LedgerService) Get(ctx context.Context, transactionID string) (*models.TransactionLog, error) {
	entry, err := s.ledger.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperrors.ErrNotFound
	}
	return entry, nil
}

// ListByBooking returns every attempt recorded against a booking.
func (s *LedgerService) ListByBooking(ctx context.Context, bookingID string) ([]models.TransactionLog, error) {
	return s.ledger.ListByBooking(ctx, bookingID)
}
