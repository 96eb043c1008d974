package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/database"
	"cinebook/internal/models"

	"github.com/lib/pq"
)

type TransactionLogRepository struct {
	db *database.DB
}

func NewTransactionLogRepository(db *database.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

const transactionColumns = `transaction_id, booking_id, amount, payment_method, status,
	payment_details, gateway_response, failure_reason, created_at, updated_at`

func scanTransaction(row interface {
	Scan(dest ...interface{}) error
}) (*models.TransactionLog, error) {
	t := &models.TransactionLog{}
	err := row.Scan(
		&t.TransactionID,
		&t.BookingID,
		&t.Amount,
		&t.PaymentMethod,
		&t.Status,
		&t.PaymentDetails,
		&t.GatewayResponse,
		&t.FailureReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecordAttempt opens a pending ledger entry. The transaction id is the
// idempotency key: a second attempt with the same id fails with
// ErrDuplicateTransaction and changes nothing.
func (r *TransactionLogRepository) RecordAttempt(ctx context.Context, entry *models.TransactionLog, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transaction_logs (transaction_id, booking_id, amount, payment_method,
			status, payment_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (transaction_id) DO NOTHING`,
		entry.TransactionID, entry.BookingID, entry.Amount, entry.PaymentMethod,
		models.TxnPending, entry.PaymentDetails, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return apperrors.ErrNotFound
		}
		return apperrors.Unavailable(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if rows == 0 {
		return apperrors.ErrDuplicateTransaction
	}

	entry.Status = models.TxnPending
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return nil
}

// RecordResult sets the outcome of a previously recorded attempt. Unknown
// transaction ids fail with ErrNotFound; a second success for the same
// booking trips the one-success index and fails with ErrDuplicateTransaction.
func (r *TransactionLogRepository) RecordResult(ctx context.Context, transactionID string, status models.TransactionStatus, gatewayResponse models.Payload, failureReason *string, now time.Time) (*models.TransactionLog, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE transaction_logs
		SET status = $2, gateway_response = $3, failure_reason = $4, updated_at = $5
		WHERE transaction_id = $1
		RETURNING `+transactionColumns,
		transactionID, status, gatewayResponse, failureReason, now)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, apperrors.ErrDuplicateTransaction
		}
		return nil, apperrors.Unavailable(err)
	}
	return t, nil
}

// GetByTransactionID returns the ledger entry or (nil, nil) when absent.
func (r *TransactionLogRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.TransactionLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transaction_logs WHERE transaction_id = $1`,
		transactionID)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return t, nil
}

// ListByBooking returns every attempt recorded against a booking, oldest
// first.
func (r *TransactionLogRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.TransactionLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transaction_logs
		WHERE booking_id = $1
		ORDER BY created_at ASC`, bookingID)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	defer rows.Close()

	var entries []models.TransactionLog
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, apperrors.Unavailable(err)
		}
		entries = append(entries, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return entries, nil
}
