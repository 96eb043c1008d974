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

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, user_id, showtime_id, seats, total_amount, status,
	lock_id, lock_expires_at, payment_transaction_id,
	confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

func scanBooking(row interface {
	Scan(dest ...interface{}) error
}) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ShowtimeID,
		pq.Array(&b.Seats),
		&b.TotalAmount,
		&b.Status,
		&b.LockID,
		&b.LockExpiresAt,
		&b.PaymentTransactionID,
		&b.ConfirmedAt,
		&b.CancelledAt,
		&b.CancellationReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Reserve creates the booking and its seat lock in one transaction. Either
// both exist afterwards or neither does; a seat conflict surfaces as
// ErrConflict with no residue.
func (r *BookingRepository) Reserve(ctx context.Context, booking *models.Booking, lock *models.SeatLock, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	if err := insertLockTx(ctx, tx, lock, now); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, showtime_id, seats, total_amount, status,
			lock_id, lock_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		booking.ID, booking.UserID, booking.ShowtimeID, pq.Array(booking.Seats),
		booking.TotalAmount, booking.Status, lock.ID, lock.ExpiresAt, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return apperrors.ErrNotFound
		}
		return apperrors.Unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Unavailable(err)
	}

	booking.LockID = &lock.ID
	booking.LockExpiresAt = &lock.ExpiresAt
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// GetByID returns the booking or (nil, nil) when absent.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return b, nil
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, apperrors.Unavailable(err)
		}
		bookings = append(bookings, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return bookings, nil
}

// ExpiredPending lists pending_payment bookings whose lock expiry has passed
// and whose lock is already gone (released or deleted), oldest first. This is
// the reaper's backstop: a booking whose lock was released but whose
// cancellation failed mid-reap no longer shows up in the expired-locks scan,
// so it is found here instead. Bookings with an unreleased expired lock are
// excluded; those belong to the primary sweep and its batch bound.
func (r *BookingRepository) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.showtime_id, b.seats, b.total_amount, b.status,
			b.lock_id, b.lock_expires_at, b.payment_transaction_id,
			b.confirmed_at, b.cancelled_at, b.cancellation_reason, b.created_at, b.updated_at
		FROM bookings b
		LEFT JOIN seat_locks l ON l.id = b.lock_id
		WHERE b.status = 'pending_payment'
		  AND b.lock_expires_at IS NOT NULL AND b.lock_expires_at <= $1
		  AND (l.id IS NULL OR l.released_at IS NOT NULL)
		ORDER BY b.lock_expires_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, apperrors.Unavailable(err)
		}
		bookings = append(bookings, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return bookings, nil
}

func getBookingForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Booking, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return b, nil
}

// Confirm moves a pending_payment booking to confirmed: verifies the lock is
// still active under row locks, converts the ephemeral seat claims into
// permanent booking_seats rows, consumes the lock and stamps the payment
// transaction. Returns the updated booking and the status it transitioned
// from.
func (r *BookingRepository) Confirm(ctx context.Context, bookingID, transactionID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	b, err := getBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return nil, "", err
	}
	prev := b.Status
	if prev != models.StatusPendingPayment {
		return nil, prev, apperrors.ErrInvalidState
	}
	if b.LockID == nil {
		return nil, prev, apperrors.ErrExpired
	}

	var expiresAt time.Time
	var releasedAt *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT expires_at, released_at FROM seat_locks WHERE id = $1 FOR UPDATE`,
		*b.LockID).Scan(&expiresAt, &releasedAt)
	if err == sql.ErrNoRows {
		return nil, prev, apperrors.ErrExpired
	}
	if err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}
	if releasedAt != nil || !now.Before(expiresAt) {
		return nil, prev, apperrors.ErrExpired
	}

	// Convert the lock's claims into permanent holds before the lock is
	// consumed, so the seats are never observably free in between.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO booking_seats (booking_id, showtime_id, seat_id)
		SELECT $1, $2, seat FROM unnest($3::text[]) AS seat
		ON CONFLICT (showtime_id, seat_id) DO NOTHING`,
		b.ID, b.ShowtimeID, pq.Array(b.Seats))
	if err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}
	if inserted != int64(len(b.Seats)) {
		return nil, prev, apperrors.ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE seat_locks SET released_at = $2 WHERE id = $1`, *b.LockID, now); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seat_lock_seats WHERE lock_id = $1`, *b.LockID); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, payment_transaction_id = $3, confirmed_at = $4, updated_at = $4
		WHERE id = $1`,
		b.ID, models.StatusConfirmed, transactionID, now); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	b.Status = models.StatusConfirmed
	b.PaymentTransactionID = &transactionID
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return b, prev, nil
}

// Cancel moves a pending_payment or confirmed booking to cancelled, releasing
// its lock and freeing any permanent seat holds. Returns the updated booking
// and the status it transitioned from.
func (r *BookingRepository) Cancel(ctx context.Context, bookingID, reason string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	b, err := getBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return nil, "", err
	}
	prev := b.Status
	if !prev.CanTransitionTo(models.StatusCancelled) {
		return nil, prev, apperrors.ErrInvalidState
	}

	if b.LockID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seat_locks SET released_at = $2 WHERE id = $1 AND released_at IS NULL`,
			*b.LockID, now); err != nil {
			return nil, prev, apperrors.Unavailable(err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM seat_lock_seats WHERE lock_id = $1`, *b.LockID); err != nil {
			return nil, prev, apperrors.Unavailable(err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE booking_id = $1`, b.ID); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, cancelled_at = $3, cancellation_reason = $4, updated_at = $3
		WHERE id = $1`,
		b.ID, models.StatusCancelled, now, reason); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	b.Status = models.StatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = &reason
	b.UpdatedAt = now
	return b, prev, nil
}

// Expire cancels a booking with reason lock_expired, but only if it is still
// pending_payment. The status guard in the WHERE clause makes the sweep safe
// to race against Confirm: a booking confirmed in between is left untouched.
func (r *BookingRepository) Expire(ctx context.Context, bookingID string, now time.Time) (*models.Booking, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE bookings
		SET status = $2, cancelled_at = $3, cancellation_reason = $4, updated_at = $3
		WHERE id = $1 AND status = $5
		RETURNING `+bookingColumns,
		bookingID, models.StatusCancelled, now, models.ReasonLockExpired, models.StatusPendingPayment)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		// Already moved on (confirmed or cancelled) or never existed.
		current, gerr := r.GetByID(ctx, bookingID)
		if gerr != nil {
			return nil, gerr
		}
		if current == nil {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.ErrInvalidState
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return b, nil
}

// MarkRefundPending moves confirmed -> refund_pending. Seats stay held; only
// the completed refund frees them.
func (r *BookingRepository) MarkRefundPending(ctx context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return r.compareAndSwapStatus(ctx, bookingID, models.StatusConfirmed, models.StatusRefundPending, now, false)
}

// MarkRefunded completes the refund: refund_pending -> refunded, freeing the
// permanent seat holds.
func (r *BookingRepository) MarkRefunded(ctx context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return r.compareAndSwapStatus(ctx, bookingID, models.StatusRefundPending, models.StatusRefunded, now, true)
}

func (r *BookingRepository) compareAndSwapStatus(ctx context.Context, bookingID string, from, to models.BookingStatus, now time.Time, freeSeats bool) (*models.Booking, models.BookingStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	b, err := getBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return nil, "", err
	}
	prev := b.Status
	if prev != from {
		return nil, prev, apperrors.ErrInvalidState
	}

	if freeSeats {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM booking_seats WHERE booking_id = $1`, b.ID); err != nil {
			return nil, prev, apperrors.Unavailable(err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
		b.ID, to, now); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, prev, apperrors.Unavailable(err)
	}

	b.Status = to
	b.UpdatedAt = now
	return b, prev, nil
}
