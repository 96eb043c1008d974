package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"A1", "A2"}, 0)
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(defaultTTL), first.ExpiresAt)

	// Overlaps on A2 only, but nothing may be granted.
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-2", []string{"A2", "A3"}, 0)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.False(t, f.store.SeatHeld("st-1", "A3"), "failed acquire must not hold any seat")
}

func TestAcquireSameSeatsOtherShowtime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"A1"}, 0)
	require.NoError(t, err)

	// Seat ids only collide within one showtime.
	_, err = f.services.Locks.Acquire(ctx, "st-2", "b-2", []string{"A1"}, 0)
	assert.NoError(t, err)
}

func TestAcquireSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.services.Locks.Acquire(ctx, "st-1", "b", []string{"B1", "B2"}, 0)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrConflict)
		}
	}
	assert.Equal(t, 1, winners, "exactly one contender must win the seats")
}

func TestAcquireAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"C1"}, 0)
	require.NoError(t, err)

	f.clock.Advance(defaultTTL + time.Second)

	// The reaper has not run, but the expired lock no longer defends its
	// seats.
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-2", []string{"C1"}, 0)
	assert.NoError(t, err)
}

func TestReleaseIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"D1"}, 0)
	require.NoError(t, err)

	released, err := f.services.Locks.Release(ctx, lock.ID)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, f.store.SeatHeld("st-1", "D1"))

	released, err = f.services.Locks.Release(ctx, lock.ID)
	require.NoError(t, err)
	assert.False(t, released, "second release is a no-op")

	released, err = f.services.Locks.Release(ctx, "no-such-lock")
	require.NoError(t, err)
	assert.False(t, released, "releasing an unknown lock is a no-op")
}

func TestExtendActiveLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"E1"}, 0)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	extended, err := f.services.Locks.Extend(ctx, lock.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(defaultTTL), extended.ExpiresAt)
}

func TestExtendExpiredLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"E2"}, 0)
	require.NoError(t, err)

	f.clock.Advance(defaultTTL + time.Second)

	// No revival: an expired lock can only be replaced by a fresh acquire.
	_, err = f.services.Locks.Extend(ctx, lock.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExtendReleasedLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"E3"}, 0)
	require.NoError(t, err)

	_, err = f.services.Locks.Release(ctx, lock.ID)
	require.NoError(t, err)

	_, err = f.services.Locks.Extend(ctx, lock.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAcquireTTLClamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"F1"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(maxTTL), lock.ExpiresAt, "TTL above the cap is clamped")

	lock, err = f.services.Locks.Acquire(ctx, "st-1", "b-2", []string{"F2"}, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(defaultTTL), lock.ExpiresAt, "non-positive TTL falls back to default")
}

func TestAcquireRetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.FailNext(2)
	_, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"G1"}, 0)
	assert.NoError(t, err, "two transient failures are absorbed by retries")

	f.store.FailNext(3)
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-2", []string{"G2"}, 0)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable, "retry budget exhausted")
}

func TestConflictIsNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"H1"}, 0)
	require.NoError(t, err)

	// One transient failure, then a conflict. The conflict is decisive, so
	// the retry budget stops there instead of burning further attempts.
	f.store.FailNext(1)
	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-2", []string{"H1"}, 0)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NotErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestAcquireValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", nil, 0)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"A1", "A1"}, 0)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = f.services.Locks.Acquire(ctx, "", "b-1", []string{"A1"}, 0)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestGetLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.services.Locks.Acquire(ctx, "st-1", "b-1", []string{"J1"}, 0)
	require.NoError(t, err)

	got, err := f.services.Locks.Get(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, lock.ID, got.ID)
	assert.Equal(t, []string{"J1"}, got.Seats)

	_, err = f.services.Locks.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
