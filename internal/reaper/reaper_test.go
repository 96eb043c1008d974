package reaper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/models"
	"cinebook/internal/reaper"
	"cinebook/internal/service"
	"cinebook/internal/service/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

const lockTTL = 5 * time.Minute

type fixture struct {
	reaper   *reaper.Reaper
	services *service.Services
	store    *servicetest.MemStore
	events   *servicetest.EventRecorder
	clock    *clock.Fake
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()

	store := servicetest.NewMemStore()
	events := servicetest.NewEventRecorder()
	clk := clock.NewFake(baseTime)

	store.AddUser("user123", "john.doe@example.com")
	store.AddShowtime("st-1", 10.00)

	services := service.New(service.Deps{
		Locks:     store.LockStore(),
		Bookings:  store.BookingStore(),
		Ledger:    store.LedgerStore(),
		Showtimes: store.ShowtimeCatalog(),
		Users:     store.UserDirectory(),
		Publisher: events,
		Clock:     clk,
		LockCfg:   config.LockConfig{DefaultTTL: lockTTL, MaxTTL: 3 * lockTTL},
	})

	r := reaper.New(store.LockStore(), store.BookingStore(), events, clk, config.ReaperConfig{
		Interval:  30 * time.Second,
		BatchSize: batchSize,
	})

	return &fixture{reaper: r, services: services, store: store, events: events, clock: clk}
}

func (f *fixture) reserve(t *testing.T, seats ...string) *models.ReserveSeatsResponse {
	t.Helper()
	resp, err := f.services.Bookings.Reserve(context.Background(), "user123", models.ReserveSeatsRequest{
		ShowtimeID: "st-1",
		Seats:      seats,
	})
	require.NoError(t, err)
	return resp
}

func TestSweepCancelsExpiredPendingBookings(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	resp := f.reserve(t, "A1", "A2")
	f.clock.Advance(lockTTL + time.Second)

	swept, err := f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, booking.Status)
	require.NotNil(t, booking.CancellationReason)
	assert.Equal(t, models.ReasonLockExpired, *booking.CancellationReason)

	// Seats are back in the pool.
	assert.False(t, f.store.SeatHeld("st-1", "A1"))
	assert.False(t, f.store.SeatHeld("st-1", "A2"))

	expired := f.events.BySubject(models.EventLockExpired)
	require.Len(t, expired, 1)
	event := expired[0].Data.(models.LockExpiredEvent)
	assert.Equal(t, resp.LockID, event.LockID)

	changes := f.events.BySubject(models.EventBookingStatusChanged)
	require.Len(t, changes, 1)
	change := changes[0].Data.(models.BookingStatusChangedEvent)
	assert.Equal(t, models.ReasonLockExpired, change.Reason)
}

func TestSweepLeavesActiveLocksAlone(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	resp := f.reserve(t, "B1")
	f.clock.Advance(lockTTL - time.Second)

	swept, err := f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, booking.Status)
}

func TestSweepNeverCancelsConfirmedBookings(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	resp := f.reserve(t, "C1")
	_, err := f.services.Bookings.Confirm(ctx, resp.BookingID, "txn-1")
	require.NoError(t, err)

	f.clock.Advance(lockTTL + time.Minute)

	_, err = f.reaper.Sweep(ctx)
	require.NoError(t, err)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.True(t, f.store.SeatHeld("st-1", "C1"), "confirmed seats stay held")
}

func TestSweepSkipsUserCancelledBookings(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	resp := f.reserve(t, "D1")
	_, err := f.services.Bookings.Cancel(ctx, resp.BookingID, "")
	require.NoError(t, err)

	f.clock.Advance(lockTTL + time.Minute)

	swept, err := f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept, "cancellation already released the lock")

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	require.NotNil(t, booking.CancellationReason)
	assert.Equal(t, models.ReasonUserRequested, *booking.CancellationReason,
		"the reaper must not overwrite the original cancellation reason")
}

func TestSweepHonorsBatchSize(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	seats := []string{"E1", "E2", "E3", "E4", "E5"}
	for _, seat := range seats {
		f.reserve(t, seat)
	}
	f.clock.Advance(lockTTL + time.Second)

	swept, err := f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept, "one pass processes at most one batch")

	// Two more passes drain the backlog.
	swept, err = f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	swept, err = f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	f.reserve(t, "F1")
	f.clock.Advance(lockTTL + time.Second)

	swept, err := f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	swept, err = f.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept, "a second pass finds nothing to do")

	assert.Len(t, f.events.BySubject(models.EventLockExpired), 1)
}

// expireOutage fails the first n Expire calls with a transient store error.
type expireOutage struct {
	service.BookingStore
	failures int
}

func (s *expireOutage) Expire(ctx context.Context, bookingID string, now time.Time) (*models.Booking, error) {
	if s.failures > 0 {
		s.failures--
		return nil, apperrors.Unavailable(errors.New("store outage"))
	}
	return s.BookingStore.Expire(ctx, bookingID, now)
}

func TestSweepRecoversBookingAfterFailedCancel(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	flaky := &expireOutage{BookingStore: f.store.BookingStore(), failures: 2}
	r := reaper.New(f.store.LockStore(), flaky, f.events, f.clock, config.ReaperConfig{
		Interval:  30 * time.Second,
		BatchSize: 100,
	})

	resp := f.reserve(t, "G1")
	f.clock.Advance(lockTTL + time.Second)

	// First pass releases the lock but every cancellation attempt fails.
	swept, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)

	booking, err := f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, booking.Status)

	// The lock is gone, so the expired-locks scan will never see it again;
	// the booking must still be picked up once the store recovers.
	swept, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	booking, err = f.services.Bookings.Get(ctx, "user123", resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, booking.Status)
	require.NotNil(t, booking.CancellationReason)
	assert.Equal(t, models.ReasonLockExpired, *booking.CancellationReason)
	assert.False(t, f.store.SeatHeld("st-1", "G1"))
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, 100)

	f.reaper.Start()
	f.reaper.Stop()
}
