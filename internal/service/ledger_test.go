package service_test

import (
	"context"
	"testing"

	"cinebook/internal/apperrors"
	"cinebook/internal/models"
	"cinebook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttemptIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "A1")

	req := models.RecordAttemptRequest{
		TransactionID: "txn-1",
		BookingID:     resp.BookingID,
		Amount:        10.00,
		PaymentMethod: models.MethodCreditCard,
	}

	entry, err := f.services.Ledger.RecordAttempt(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, entry.Status)

	// Same transaction id again: rejected, first entry untouched.
	req.Amount = 999.99
	_, err = f.services.Ledger.RecordAttempt(ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTransaction)

	stored, err := f.services.Ledger.Get(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, 10.00, stored.Amount)
}

func TestRecordAttemptUnknownBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Ledger.RecordAttempt(context.Background(), models.RecordAttemptRequest{
		TransactionID: "txn-1",
		BookingID:     "missing",
		Amount:        10.00,
		PaymentMethod: models.MethodCreditCard,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordAttemptValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "B1")

	_, err := f.services.Ledger.RecordAttempt(ctx, models.RecordAttemptRequest{
		TransactionID: "txn-1",
		BookingID:     resp.BookingID,
		Amount:        10.00,
		PaymentMethod: "barter",
	})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = f.services.Ledger.RecordAttempt(ctx, models.RecordAttemptRequest{
		TransactionID: "txn-2",
		BookingID:     resp.BookingID,
		Amount:        -1,
		PaymentMethod: models.MethodCreditCard,
	})
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestRecordResultUnknownTransaction(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Bookings.HandlePaymentResult(context.Background(), models.PaymentResultRequest{
		TransactionID: "missing",
		Status:        models.TxnSuccess,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOneSuccessPerBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "C1")

	for _, txn := range []string{"txn-1", "txn-2"} {
		_, err := f.services.Ledger.RecordAttempt(ctx, models.RecordAttemptRequest{
			TransactionID: txn,
			BookingID:     resp.BookingID,
			Amount:        10.00,
			PaymentMethod: models.MethodCreditCard,
		})
		require.NoError(t, err)
	}

	_, err := f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: "txn-1",
		Status:        models.TxnSuccess,
	})
	require.NoError(t, err)

	// A second success against the same booking is rejected at the ledger.
	_, err = f.services.Bookings.HandlePaymentResult(ctx, models.PaymentResultRequest{
		TransactionID: "txn-2",
		Status:        models.TxnSuccess,
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTransaction)
}

func TestListByBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := reserve(t, f, "user123", "D1")

	for _, txn := range []string{"txn-1", "txn-2", "txn-3"} {
		_, err := f.services.Ledger.RecordAttempt(ctx, models.RecordAttemptRequest{
			TransactionID: txn,
			BookingID:     resp.BookingID,
			Amount:        10.00,
			PaymentMethod: models.MethodNetBanking,
		})
		require.NoError(t, err)
	}

	entries, err := f.services.Ledger.ListByBooking(ctx, resp.BookingID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
