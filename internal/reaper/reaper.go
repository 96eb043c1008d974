// Package reaper runs the background sweep that reclaims expired seat locks
// and cancels the pending bookings that depended on them.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/metrics"
	"cinebook/internal/models"
	"cinebook/internal/service"
)

type Reaper struct {
	locks     service.LockStore
	bookings  service.BookingStore
	publisher service.EventPublisher
	clock     clock.Clock
	interval  time.Duration
	batchSize int

	done chan struct{}
	wg   sync.WaitGroup
}

func New(locks service.LockStore, bookings service.BookingStore, publisher service.EventPublisher, clk clock.Clock, cfg config.ReaperConfig) *Reaper {
	if clk == nil {
		clk = clock.System()
	}
	return &Reaper{
		locks:     locks,
		bookings:  bookings,
		publisher: publisher,
		clock:     clk,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		done:      make(chan struct{}),
	}
}

// Start launches the periodic sweep in a background goroutine.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		slog.Info("Lock expiry reaper started",
			"interval", r.interval, "batch_size", r.batchSize)

		for {
			select {
			case <-ticker.C:
				swept, err := r.Sweep(context.Background())
				if err != nil {
					slog.Error("Lock expiry sweep failed", "error", err)
				} else if swept > 0 {
					slog.Info("Lock expiry sweep completed", "expired", swept)
				}
			case <-r.done:
				slog.Info("Lock expiry reaper stopped")
				return
			}
		}
	}()
}

// Stop shuts the reaper down and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	close(r.done)
	r.wg.Wait()
}

// Sweep reclaims up to one batch of expired locks. Each lock is released and
// its pending booking cancelled with reason lock_expired; bookings that moved
// on (confirmed, or cancelled by the user) are left untouched. One failing
// lock does not stop the rest of the batch, it just stays for the next pass.
// A backstop pass then picks up pending bookings whose lock is already gone,
// so a reap that released the lock but failed to cancel the booking cannot
// strand it.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	metrics.ReaperSweepsTotal.Inc()

	now := r.clock.Now()
	expired, err := r.locks.Expired(ctx, now, r.batchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range expired {
		lock := &expired[i]
		if err := r.reap(ctx, lock); err != nil {
			metrics.ReaperErrorsTotal.Inc()
			slog.Error("Failed to reap expired lock",
				"lock_id", lock.ID, "booking_id", lock.BookingID, "error", err)
			continue
		}
		swept++
		metrics.ReaperExpiredTotal.Inc()
	}

	stranded, err := r.sweepStranded(ctx)
	if err != nil {
		return swept, err
	}
	return swept + stranded, nil
}

// sweepStranded cancels pending bookings whose lock expired and is already
// released or deleted. The primary pass never returns to these: the
// expired-locks scan only sees unreleased locks.
func (r *Reaper) sweepStranded(ctx context.Context) (int, error) {
	now := r.clock.Now()
	bookings, err := r.bookings.ExpiredPending(ctx, now, r.batchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range bookings {
		if err := r.expireBooking(ctx, bookings[i].ID, now); err != nil {
			metrics.ReaperErrorsTotal.Inc()
			slog.Error("Failed to cancel stranded booking",
				"booking_id", bookings[i].ID, "error", err)
			continue
		}
		swept++
	}
	return swept, nil
}

func (r *Reaper) reap(ctx context.Context, lock *models.SeatLock) error {
	now := r.clock.Now()

	released, err := r.locks.Release(ctx, lock.ID, now)
	if err != nil {
		return err
	}
	if !released {
		// Raced with an explicit release or confirmation.
		return nil
	}

	r.publish(models.EventLockExpired, models.LockExpiredEvent{
		LockID:     lock.ID,
		BookingID:  lock.BookingID,
		ShowtimeID: lock.ShowtimeID,
		Seats:      lock.Seats,
		Timestamp:  now,
	})

	return r.expireBooking(ctx, lock.BookingID, now)
}

// expireBooking cancels a pending booking with reason lock_expired. Bookings
// that moved on are not an error: confirmed or user-cancelled in the
// meantime means there is nothing left to do.
func (r *Reaper) expireBooking(ctx context.Context, bookingID string, now time.Time) error {
	booking, err := r.bookings.Expire(ctx, bookingID, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidState) || errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	r.publish(models.EventBookingStatusChanged, models.BookingStatusChangedEvent{
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		ShowtimeID: booking.ShowtimeID,
		OldStatus:  models.StatusPendingPayment,
		NewStatus:  models.StatusCancelled,
		Reason:     models.ReasonLockExpired,
		Timestamp:  now,
	})

	return nil
}

func (r *Reaper) publish(subject string, event interface{}) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(subject, event); err != nil {
		slog.Error("Failed to publish event", "subject", subject, "error", err)
	}
}
