package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"cinebook/internal/apperrors"
	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/metrics"
	"cinebook/internal/models"

	"github.com/google/uuid"
)

// BookingService drives the booking lifecycle: reservation with its seat
// lock, the payment-driven transitions, cancellation and the refund path.
type BookingService struct {
	bookings  BookingStore
	locks     LockStore
	ledger    LedgerStore
	showtimes ShowtimeCatalog
	users     UserDirectory
	publisher EventPublisher
	gateway   PaymentGateway
	clock     clock.Clock
	lockCfg   config.LockConfig
}

func NewBookingService(deps Deps) *BookingService {
	return &BookingService{
		bookings:  deps.Bookings,
		locks:     deps.Locks,
		ledger:    deps.Ledger,
		showtimes: deps.Showtimes,
		users:     deps.Users,
		publisher: deps.Publisher,
		gateway:   deps.Gateway,
		clock:     deps.Clock,
		lockCfg:   deps.LockCfg,
	}
}

// Reserve creates a pending_payment booking together with its seat lock in
// one atomic step. Either the caller gets a booking holding every requested
// seat, or ErrConflict and nothing exists.
func (s *BookingService) Reserve(ctx context.Context, userID string, req models.ReserveSeatsRequest) (*models.ReserveSeatsResponse, error) {
	if err := validateSeats(req.Seats); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
	}

	showtime, err := s.showtimes.GetByID(ctx, req.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if showtime == nil {
		return nil, fmt.Errorf("showtime %s: %w", req.ShowtimeID, apperrors.ErrNotFound)
	}

	now := s.clock.Now()
	booking := &models.Booking{
		ID:          uuid.New().String(),
		UserID:      userID,
		ShowtimeID:  req.ShowtimeID,
		Seats:       req.Seats,
		TotalAmount: showtime.BasePrice * float64(len(req.Seats)),
		Status:      models.StatusPendingPayment,
	}
	lock := &models.SeatLock{
		ID:         uuid.New().String(),
		ShowtimeID: req.ShowtimeID,
		BookingID:  booking.ID,
		Seats:      req.Seats,
		ExpiresAt:  now.Add(s.lockCfg.DefaultTTL),
	}

	err = withRetry(ctx, func() error {
		return s.bookings.Reserve(ctx, booking, lock, s.clock.Now())
	}, metrics.LockAcquireRetries.Inc)

	switch {
	case err == nil:
		metrics.LockAcquireTotal.WithLabelValues("acquired").Inc()
	case apperrors.Retryable(err):
		metrics.LockAcquireTotal.WithLabelValues("error").Inc()
	default:
		metrics.LockAcquireTotal.WithLabelValues("conflict").Inc()
	}
	if err != nil {
		return nil, err
	}

	s.publish(models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID:     booking.ID,
		UserID:        userID,
		ShowtimeID:    req.ShowtimeID,
		Seats:         req.Seats,
		TotalAmount:   booking.TotalAmount,
		LockID:        lock.ID,
		LockExpiresAt: lock.ExpiresAt,
		Timestamp:     now,
	})

	return &models.ReserveSeatsResponse{
		BookingID:     booking.ID,
		LockID:        lock.ID,
		LockExpiresAt: lock.ExpiresAt,
		TotalAmount:   booking.TotalAmount,
	}, nil
}

// Get returns a booking owned by userID. Other users' bookings read as
// absent.
func (s *BookingService) Get(ctx context.Context, userID, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return booking, nil
}

// List returns a user's bookings, newest first.
func (s *BookingService) List(ctx context.Context, userID string, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByUser(ctx, userID, limit, offset)
}

// Confirm finalizes a pending booking whose seat lock is still active: seats
// become permanently held and the lock is consumed. A lapsed lock fails with
// ErrExpired even if the reaper has not swept it yet.
func (s *BookingService) Confirm(ctx context.Context, bookingID, transactionID string) (*models.Booking, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id required", ErrInvalidArgument)
	}

	booking, prev, err := s.bookings.Confirm(ctx, bookingID, transactionID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(models.StatusConfirmed)).Inc()
	s.publishStatusChange(booking, prev, "")
	return booking, nil
}

// Cancel cancels from pending_payment or confirmed, releasing the seats.
// Terminal and refund_pending bookings fail with ErrInvalidState.
func (s *BookingService) Cancel(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	if reason == "" {
		reason = models.ReasonUserRequested
	}

	booking, prev, err := s.bookings.Cancel(ctx, bookingID, reason, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	s.publishStatusChange(booking, prev, reason)
	return booking, nil
}

// RequestRefund moves a confirmed booking to refund_pending and asks the
// gateway to return the funds. Seats stay held until the refund completes.
func (s *BookingService) RequestRefund(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, prev, err := s.bookings.MarkRefundPending(ctx, bookingID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(models.StatusRefundPending)).Inc()
	s.publishStatusChange(booking, prev, "")

	if s.gateway != nil && booking.PaymentTransactionID != nil {
		if err := s.gateway.RefundPayment(*booking.PaymentTransactionID, toMinorUnits(booking.TotalAmount)); err != nil {
			// The booking stays in refund_pending; the gateway callback or an
			// operator completes or retries the refund.
			slog.Error("Gateway refund request failed",
				"booking_id", bookingID, "error", err)
		}
	}

	return booking, nil
}

// CompleteRefund finishes the refund path: refund_pending -> refunded, seats
// freed.
func (s *BookingService) CompleteRefund(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, prev, err := s.bookings.MarkRefunded(ctx, bookingID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(models.StatusRefunded)).Inc()
	s.publishStatusChange(booking, prev, "")
	return booking, nil
}

// InitiatePayment opens a gateway payment for a pending booking and records
// the attempt in the ledger under the gateway's payment id.
func (s *BookingService) InitiatePayment(ctx context.Context, userID string, req models.InitiatePaymentRequest) (*models.InitiatePaymentResponse, error) {
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidArgument, req.PaymentMethod)
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("payment gateway not configured: %w", apperrors.ErrStoreUnavailable)
	}

	booking, err := s.Get(ctx, userID, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPendingPayment {
		return nil, apperrors.ErrInvalidState
	}

	resp, err := s.gateway.InitPayment(toMinorUnits(booking.TotalAmount), booking.ID, "USD",
		fmt.Sprintf("Booking %s, %d seat(s)", booking.ID, len(booking.Seats)))
	if err != nil {
		return nil, fmt.Errorf("payment init failed: %w", err)
	}

	entry := &models.TransactionLog{
		TransactionID: resp.PaymentID,
		BookingID:     booking.ID,
		Amount:        booking.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		PaymentDetails: models.Payload{
			"payment_url": resp.PaymentURL,
			"currency":    resp.Currency,
		},
	}
	if err := s.ledger.RecordAttempt(ctx, entry, s.clock.Now()); err != nil {
		return nil, err
	}

	return &models.InitiatePaymentResponse{
		TransactionID: resp.PaymentID,
		PaymentURL:    resp.PaymentURL,
	}, nil
}

// HandlePaymentResult applies a gateway outcome: the ledger entry is closed
// first, then the booking follows. A success confirms the booking, a failure
// cancels it with reason payment_failed, a refund completes the refund path.
func (s *BookingService) HandlePaymentResult(ctx context.Context, req models.PaymentResultRequest) (*models.TransactionLog, error) {
	switch req.Status {
	case models.TxnSuccess, models.TxnFailed, models.TxnRefunded:
	default:
		return nil, fmt.Errorf("%w: unexpected result status %q", ErrInvalidArgument, req.Status)
	}

	entry, err := s.ledger.RecordResult(ctx, req.TransactionID, req.Status,
		req.GatewayResponse, req.FailureReason, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.PaymentResultsTotal.WithLabelValues(string(req.Status)).Inc()
	s.publish(models.EventPaymentRecorded, models.PaymentRecordedEvent{
		TransactionID: entry.TransactionID,
		BookingID:     entry.BookingID,
		Status:        entry.Status,
		Timestamp:     s.clock.Now(),
	})

	switch req.Status {
	case models.TxnSuccess:
		if _, err := s.Confirm(ctx, entry.BookingID, entry.TransactionID); err != nil {
			// The payment landed but the booking can no longer be confirmed,
			// typically because the lock expired first. The ledger keeps the
			// success; the money has to go back out of band.
			slog.Error("Payment succeeded but confirmation failed",
				"booking_id", entry.BookingID,
				"transaction_id", entry.TransactionID,
				"error", err)
			return entry, err
		}
	case models.TxnFailed:
		if _, err := s.Cancel(ctx, entry.BookingID, models.ReasonPaymentFailed); err != nil {
			// Already cancelled by the reaper or the user. Nothing to do.
			slog.Warn("Payment failed but booking not cancellable",
				"booking_id", entry.BookingID, "error", err)
		}
	case models.TxnRefunded:
		if _, err := s.CompleteRefund(ctx, entry.BookingID); err != nil {
			slog.Error("Refund result could not complete booking refund",
				"booking_id", entry.BookingID, "error", err)
			return entry, err
		}
	}

	return entry, nil
}

func (s *BookingService) publishStatusChange(b *models.Booking, prev models.BookingStatus, reason string) {
	s.publish(models.EventBookingStatusChanged, models.BookingStatusChangedEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		ShowtimeID: b.ShowtimeID,
		OldStatus:  prev,
		NewStatus:  b.Status,
		Reason:     reason,
		Timestamp:  s.clock.Now(),
	})
}

func (s *BookingService) publish(subject string, event interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(subject, event); err != nil {
		slog.Error("Failed to publish event", "subject", subject, "error", err)
	}
}

// toMinorUnits converts a decimal amount to the gateway's integer minor
// units.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
