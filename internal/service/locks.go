package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/metrics"
	"cinebook/internal/models"

	"github.com/google/uuid"
)

// LockService owns seat-lock lifecycle outside of the reservation flow:
// explicit release, extension and inspection. Acquisition normally happens
// through BookingService.Reserve, which creates the lock and its booking
// together.
type LockService struct {
	locks LockStore
	clock clock.Clock
	cfg   config.LockConfig
}

func NewLockService(locks LockStore, clk clock.Clock, cfg config.LockConfig) *LockService {
	return &LockService{locks: locks, clock: clk, cfg: cfg}
}

// clampTTL normalizes a requested TTL into the configured window.
func (s *LockService) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.DefaultTTL
	}
	if ttl > s.cfg.MaxTTL {
		return s.cfg.MaxTTL
	}
	return ttl
}

func validateSeats(seats []string) error {
	if len(seats) == 0 {
		return fmt.Errorf("%w: seats must not be empty", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		if seat == "" {
			return fmt.Errorf("%w: empty seat id", ErrInvalidArgument)
		}
		if _, dup := seen[seat]; dup {
			return fmt.Errorf("%w: duplicate seat %s", ErrInvalidArgument, seat)
		}
		seen[seat] = struct{}{}
	}
	return nil
}

// Acquire takes an exclusive lock on the full seat set, or fails with
// ErrConflict if any seat is held. Transient store failures are retried a
// bounded number of times; conflicts are decisive.
func (s *LockService) Acquire(ctx context.Context, showtimeID, bookingID string, seats []string, ttl time.Duration) (*models.SeatLock, error) {
	if showtimeID == "" {
		return nil, fmt.Errorf("%w: showtime_id required", ErrInvalidArgument)
	}
	if err := validateSeats(seats); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	lock := &models.SeatLock{
		ID:         uuid.New().String(),
		ShowtimeID: showtimeID,
		BookingID:  bookingID,
		Seats:      seats,
		ExpiresAt:  now.Add(s.clampTTL(ttl)),
	}

	err := withRetry(ctx, func() error {
		return s.locks.Acquire(ctx, lock, s.clock.Now())
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

	return lock, nil
}

// Release releases a lock and frees its seats. Idempotent: an unknown,
// expired or already released lock is a no-op reporting released=false.
func (s *LockService) Release(ctx context.Context, lockID string) (bool, error) {
	if lockID == "" {
		return false, fmt.Errorf("%w: lock_id required", ErrInvalidArgument)
	}
	return s.locks.Release(ctx, lockID, s.clock.Now())
}

// Extend pushes an active lock's expiry to now + ttl. Extending an absent,
// expired or released lock fails with ErrNotFound; a fresh lock must be
// acquired instead.
func (s *LockService) Extend(ctx context.Context, lockID string, ttl time.Duration) (*models.SeatLock, error) {
	if lockID == "" {
		return nil, fmt.Errorf("%w: lock_id required", ErrInvalidArgument)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.clampTTL(ttl))

	if err := s.locks.Extend(ctx, lockID, expiresAt, now); err != nil {
		return nil, err
	}

	lock, err := s.locks.GetByID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		// Extended a moment ago, gone now. Treat as not found.
		slog.Warn("Lock vanished after extend", "lock_id", lockID)
		return nil, apperrors.ErrNotFound
	}
	return lock, nil
}

// Get returns the lock's current state.
func (s *LockService) Get(ctx context.Context, lockID string) (*models.SeatLock, error) {
	lock, err := s.locks.GetByID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, apperrors.ErrNotFound
	}
	return lock, nil
}
