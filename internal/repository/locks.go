package repository

import (
	"context"
	"database/sql"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/database"
	"cinebook/internal/models"

	"github.com/lib/pq"
)

type SeatLockRepository struct {
	db *database.DB
}

func NewSeatLockRepository(db *database.DB) *SeatLockRepository {
	return &SeatLockRepository{db: db}
}

// insertLockTx inserts the lock row and claims its seats inside tx. The
// claim is all-or-nothing: stale claims left by expired or released locks
// are cleared first, then the UNIQUE (showtime_id, seat_id) constraint
// arbitrates between concurrent acquirers — exactly one transaction gets all
// its rows in, everyone else rolls back with ErrConflict.
func insertLockTx(ctx context.Context, tx *sql.Tx, lock *models.SeatLock, now time.Time) error {
	// A seat held by a pending or confirmed booking is a hard conflict.
	var claimed int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM booking_seats WHERE showtime_id = $1 AND seat_id = ANY($2)`,
		lock.ShowtimeID, pq.Array(lock.Seats)).Scan(&claimed)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if claimed > 0 {
		return apperrors.ErrConflict
	}

	// Clear claims whose owning lock has expired or been released.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM seat_lock_seats s
		USING seat_locks l
		WHERE s.lock_id = l.id
		  AND s.showtime_id = $1
		  AND s.seat_id = ANY($2)
		  AND (l.released_at IS NOT NULL OR l.expires_at <= $3)`,
		lock.ShowtimeID, pq.Array(lock.Seats), now)
	if err != nil {
		return apperrors.Unavailable(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO seat_locks (id, showtime_id, booking_id, seats, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		lock.ID, lock.ShowtimeID, lock.BookingID, pq.Array(lock.Seats), lock.ExpiresAt, now)
	if err != nil {
		return apperrors.Unavailable(err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO seat_lock_seats (lock_id, showtime_id, seat_id)
		SELECT $1, $2, seat FROM unnest($3::text[]) AS seat
		ON CONFLICT (showtime_id, seat_id) DO NOTHING`,
		lock.ID, lock.ShowtimeID, pq.Array(lock.Seats))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if inserted != int64(len(lock.Seats)) {
		// At least one seat is claimed by a live lock. Rolling back the
		// transaction undoes every row, so partial locking is never visible.
		return apperrors.ErrConflict
	}

	// Re-check booking_seats now that the claims are in. A concurrent confirm
	// can commit between the pre-check above and the claims insert: it moves
	// its seats into booking_seats and deletes its lock's claim rows, so the
	// insert sails through against seats that are permanently held. The
	// unique-index insert serializes this transaction against that confirm,
	// so this statement's snapshot sees its committed booking_seats rows.
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM booking_seats WHERE showtime_id = $1 AND seat_id = ANY($2)`,
		lock.ShowtimeID, pq.Array(lock.Seats)).Scan(&claimed)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if claimed > 0 {
		return apperrors.ErrConflict
	}

	lock.CreatedAt = now
	return nil
}

// Acquire persists a lock covering its full seat set, or fails with
// ErrConflict leaving no trace.
func (r *SeatLockRepository) Acquire(ctx context.Context, lock *models.SeatLock, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	if err := insertLockTx(ctx, tx, lock, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

// Release marks the lock released and frees its seat claims. It is
// idempotent: releasing an unknown or already released lock reports false
// with no error.
func (r *SeatLockRepository) Release(ctx context.Context, lockID string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE seat_locks SET released_at = $2 WHERE id = $1 AND released_at IS NULL`,
		lockID, now)
	if err != nil {
		return false, apperrors.Unavailable(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Unavailable(err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seat_lock_seats WHERE lock_id = $1`, lockID); err != nil {
		return false, apperrors.Unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.Unavailable(err)
	}
	return true, nil
}

// Extend moves an active lock's expiry. Absent, released and already expired
// locks all fail with ErrNotFound.
func (r *SeatLockRepository) Extend(ctx context.Context, lockID string, expiresAt, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE seat_locks SET expires_at = $2
		WHERE id = $1 AND released_at IS NULL AND expires_at > $3`,
		lockID, expiresAt, now)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if rows == 0 {
		return apperrors.ErrNotFound
	}

	// Keep the owning booking's denormalized expiry in step.
	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings SET lock_expires_at = $2, updated_at = $3
		WHERE lock_id = $1 AND status = 'pending_payment'`,
		lockID, expiresAt, now); err != nil {
		return apperrors.Unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

// GetByID returns the lock or (nil, nil) when absent.
func (r *SeatLockRepository) GetByID(ctx context.Context, lockID string) (*models.SeatLock, error) {
	lock := &models.SeatLock{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, showtime_id, booking_id, seats, expires_at, released_at, created_at
		FROM seat_locks
		WHERE id = $1`, lockID).Scan(
		&lock.ID,
		&lock.ShowtimeID,
		&lock.BookingID,
		pq.Array(&lock.Seats),
		&lock.ExpiresAt,
		&lock.ReleasedAt,
		&lock.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return lock, nil
}

// Expired lists unreleased locks whose expiry has passed, oldest first,
// bounded to limit rows so a sweep cannot run away.
func (r *SeatLockRepository) Expired(ctx context.Context, now time.Time, limit int) ([]models.SeatLock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, showtime_id, booking_id, seats, expires_at, released_at, created_at
		FROM seat_locks
		WHERE released_at IS NULL AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	defer rows.Close()

	var locks []models.SeatLock
	for rows.Next() {
		var lock models.SeatLock
		err := rows.Scan(
			&lock.ID,
			&lock.ShowtimeID,
			&lock.BookingID,
			pq.Array(&lock.Seats),
			&lock.ExpiresAt,
			&lock.ReleasedAt,
			&lock.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Unavailable(err)
		}
		locks = append(locks, lock)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return locks, nil
}
