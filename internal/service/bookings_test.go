package service_test

import (
	"context"
	"testing"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/models"
	"cinebook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserve(t *testing.T, f *fixture, userID string, seats ...string) *models.ReserveSeatsResponse {
	t.Helper()
	resp, err := f.services.Bookings.Reserve(context.Background(), userID, models.ReserveSeatsRequest{
		ShowtimeID: "st-1",
		Seats:      seats,
	})
	require.NoError(t, err)
	return resp
}

func TestReserveCreatesBookingAndLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "A1", "A2", "A3")

	assert.Equal(t, 30.00, resp.TotalAmount, "price is base price per seat")
	assert.Equal(t, baseTime.Add(defaultTTL), resp.LockExpiresAt)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, booking.Status)
	assert.Equal(t, []string{"A1", "A2", "A3"}, booking.Seats)
	require.NotNil(t, booking.LockID)
	assert.Equal(t, resp.LockID, *booking.LockID)

	created := f.events.BySubject(models.EventBookingCreated)
	require.Len(t, created, 1)
	event := created[0].Data.(models.BookingCreatedEvent)
	assert.Equal(t, resp.BookingID, event.BookingID)
}

func TestReserveConflictLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reserve(t, f, "user123", "B1", "B2")

	_, err := f.services.Bookings.Reserve(ctx, "user456", models.ReserveSeatsRequest{
		ShowtimeID: "st-1",
		Seats:      []string{"B2", "B3"},
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.False(t, f.store.SeatHeld("st-1", "B3"))

	bookings, err := f.services.Bookings.List(ctx, "user456", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, bookings, "a failed reservation leaves no booking behind")
}

func TestReserveUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Bookings.Reserve(context.Background(), "ghost", models.ReserveSeatsRequest{
		ShowtimeID: "st-1",
		Seats:      []string{"C1"},
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReserveUnknownShowtime(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Bookings.Reserve(context.Background(), "user123", models.ReserveSeatsRequest{
		ShowtimeID: "st-missing",
		Seats:      []string{"C1"},
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReserveDuplicateSeats(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Bookings.Reserve(context.Background(), "user123", models.ReserveSeatsRequest{
		ShowtimeID: "st-1",
		Seats:      []string{"C1", "C1"},
	})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestConfirmHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "D1", "D2")

	booking, err := f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	require.NotNil(t, booking.PaymentTransactionID)
	assert.Equal(t, "txn-1", *booking.PaymentTransactionID)
	require.NotNil(t, booking.ConfirmedAt)

	// The lock is consumed but the seats became permanent holds: even long
	// after the original TTL they are not up for grabs.
	lock, err := f.services.Locks.Get(ctx, resp.LockID)
	require.NoError(t, err)
	assert.NotNil(t, lock.ReleasedAt)

	f.clock.Advance(time.Hour)
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-x", []string{"D1"}, 0)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	changes := f.events.BySubject(models.EventBookingStatusChanged)
	require.Len(t, changes, 1)
	event := changes[0].Data.(models.BookingStatusChangedEvent)
	assert.Equal(t, models.StatusPendingPayment, event.OldStatus)
	assert.Equal(t, models.StatusConfirmed, event.NewStatus)
}

func TestConfirmAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "E1")
	f.clock.Advance(defaultTTL + time.Second)

	_, err := f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-1")
	assert.ErrorIs(t, err, apperrors.ErrExpired)

	// The booking is untouched; the reaper will cancel it on its next pass.
	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, booking.Status)
}

func TestConfirmTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "F1")

	_, err := f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-1")
	require.NoError(t, err)

	_, err = f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-2")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestConfirmMissingBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Bookings.Confirm(context.Background(), "missing", "txn-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCancelPendingFreesSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "G1", "G2")

	booking, err := f.services.Bookings.Cancel(ctx, resp.BookingID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, booking.Status)
	require.NotNil(t, booking.CancellationReason)
	assert.Equal(t, models.ReasonUserRequested, *booking.CancellationReason)

	// Seats are free again immediately.
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-x", []string{"G1", "G2"}, 0)
	assert.NoError(t, err)
}

func TestCancelConfirmedFreesSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "H1")
	_, err := f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-1")
	require.NoError(t, err)

	booking, err := f.services.Bookings.Cancel(ctx, resp.BookingID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, booking.Status)
	assert.False(t, f.store.SeatHeld("st-1", "H1"))
}

func TestCancelTerminalBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "I1")
	_, err := f.services.Bookings.Cancel(ctx, resp.BookingID, "")
	require.NoError(t, err)

	_, err = f.services.Bookings.Cancel(ctx, resp.BookingID, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestRefundFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "J1", "J2")
	_, err := f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-1")
	require.NoError(t, err)

	booking, err := f.services.Bookings.RequestRefund(ctx, resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundPending, booking.Status)
	assert.Equal(t, []string{"txn-1"}, f.gateway.Refunds())

	// refund_pending still holds the seats.
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-x", []string{"J1"}, 0)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// refund_pending cannot be cancelled; it only completes.
	_, err = f.services.Bookings.Cancel(ctx, resp.BookingID, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	booking, err = f.services.Bookings.CompleteRefund(ctx, resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, booking.Status)

	// Now the seats are back in the pool.
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-x", []string{"J1", "J2"}, 0)
	assert.NoError(t, err)
}

func TestRefundRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "K1")

	_, err := f.services.Bookings.RequestRefund(ctx, resp.BookingID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "L1")

	_, err := f.services.Bookings.Get(ctx, "user456", resp.BookingID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "foreign bookings read as absent")
}

func TestInitiatePaymentAndSuccessResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "M1", "M2")

	initResp, err := f.services.Bookings.InitiatePayment(ctx, "user123", models.InitiatePaymentRequest{
		BookingID:     resp.BookingID,
		PaymentMethod: models.MethodCreditCard,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, initResp.PaymentURL)

	entry, err := f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: initResp.TransactionID,
		Status:        models.TxnSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, entry.Status)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, booking.Status)

	recorded := f.events.BySubject(models.EventPaymentRecorded)
	require.Len(t, recorded, 1)
	event := recorded[0].Data.(models.PaymentRecordedEvent)
	assert.Equal(t, initResp.TransactionID, event.TransactionID)
	assert.Equal(t, resp.BookingID, event.BookingID)
	assert.Equal(t, models.TxnSuccess, event.Status)
}

func TestPaymentFailureCancelsBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "N1")

	initResp, err := f.services.Bookings.InitiatePayment(ctx, "user123", models.InitiatePaymentRequest{
		BookingID:     resp.BookingID,
		PaymentMethod: models.MethodDebitCard,
	})
	require.NoError(t, err)

	reason := "insufficient funds"
	_, err = f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: initResp.TransactionID,
		Status:        models.TxnFailed,
		FailureReason: &reason,
	})
	require.NoError(t, err)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, booking.Status)
	require.NotNil(t, booking.CancellationReason)
	assert.Equal(t, models.ReasonPaymentFailed, *booking.CancellationReason)
	assert.False(t, f.store.SeatHeld("st-1", "N1"))
}

func TestPaymentSuccessAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "O1")

	initResp, err := f.services.Bookings.InitiatePayment(ctx, "user123", models.InitiatePaymentRequest{
		BookingID:     resp.BookingID,
		PaymentMethod: models.MethodCreditCard,
	})
	require.NoError(t, err)

	f.clock.Advance(defaultTTL + time.Minute)

	// The gateway reports success after the lock lapsed. The ledger keeps
	// the success for reconciliation, but the booking cannot be confirmed.
	_, err = f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: initResp.TransactionID,
		Status:        models.TxnSuccess,
	})
	assert.ErrorIs(t, err, apperrors.ErrExpired)

	entry, err := f.services.Ledger.Get(ctx, initResp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, entry.Status)
}

func TestRefundResultCompletesRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "P1")

	initResp, err := f.services.Bookings.InitiatePayment(ctx, "user123", models.InitiatePaymentRequest{
		BookingID:     resp.BookingID,
		PaymentMethod: models.MethodCreditCard,
	})
	require.NoError(t, err)

	_, err = f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: initResp.TransactionID,
		Status:        models.TxnSuccess,
	})
	require.NoError(t, err)

	_, err = f.services.Bookings.RequestRefund(ctx, resp.BookingID)
	require.NoError(t, err)

	_, err = f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: initResp.TransactionID,
		Status:        models.TxnRefunded,
	})
	require.NoError(t, err)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, booking.Status)
	assert.False(t, f.store.SeatHeld("st-1", "P1"))
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := reserve(t, f, "user123", "Q1")
	f.clock.Advance(time.Minute)
	second := reserve(t, f, "user123", "Q2")

	bookings, err := f.services.Bookings.List(ctx, "user123", 10, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, second.BookingID, bookings[0].ID)
	assert.Equal(t, first.BookingID, bookings[1].ID)
}
