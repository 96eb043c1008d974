// Package servicetest provides an in-memory store with the same conflict and
// transition semantics as the Postgres repositories, plus fakes for the event
// bus and the payment gateway. Service, reaper and handler tests run against
// it with a manually advanced clock.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/models"
)

type seatKey struct {
	showtimeID string
	seatID     string
}

// MemStore implements the service store interfaces in memory under one
// mutex, giving the same atomicity guarantees the SQL transactions do.
type MemStore struct {
	mu sync.Mutex

	locks     map[string]*models.SeatLock
	bookings  map[string]*models.Booking
	ledger    map[string]*models.TransactionLog
	users     map[string]*models.User
	showtimes map[string]*models.Showtime

	lockSeats    map[seatKey]string // -> lock id
	bookingSeats map[seatKey]string // -> booking id

	// failNext makes the next N mutating calls fail with a transient error.
	failNext int
}

func NewMemStore() *MemStore {
	return &MemStore{
		locks:        make(map[string]*models.SeatLock),
		bookings:     make(map[string]*models.Booking),
		ledger:       make(map[string]*models.TransactionLog),
		users:        make(map[string]*models.User),
		showtimes:    make(map[string]*models.Showtime),
		lockSeats:    make(map[seatKey]string),
		bookingSeats: make(map[seatKey]string),
	}
}

// FailNext injects n transient store failures into upcoming mutating calls.
func (m *MemStore) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

func (m *MemStore) transientFailure() error {
	if m.failNext > 0 {
		m.failNext--
		return apperrors.Unavailable(errors.New("injected failure"))
	}
	return nil
}

// AddUser seeds an active user.
func (m *MemStore) AddUser(id, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &models.User{ID: id, Email: email, IsActive: true}
}

// AddShowtime seeds a catalog entry.
func (m *MemStore) AddShowtime(id string, basePrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showtimes[id] = &models.Showtime{ID: id, MovieTitle: "Test Movie", BasePrice: basePrice}
}

// SeatHeld reports whether a seat is currently claimed by any lock or
// booking.
func (m *MemStore) SeatHeld(showtimeID, seatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := seatKey{showtimeID, seatID}
	_, lockHeld := m.lockSeats[key]
	_, bookingHeld := m.bookingSeats[key]
	return lockHeld || bookingHeld
}

// --- LockStore ---

func (m *MemStore) acquireLocked(lock *models.SeatLock, now time.Time) error {
	for _, seat := range lock.Seats {
		key := seatKey{lock.ShowtimeID, seat}
		if _, held := m.bookingSeats[key]; held {
			return apperrors.ErrConflict
		}
		if ownerID, held := m.lockSeats[key]; held {
			owner := m.locks[ownerID]
			if owner != nil && owner.Active(now) {
				return apperrors.ErrConflict
			}
		}
	}

	cp := *lock
	cp.Seats = append([]string(nil), lock.Seats...)
	cp.CreatedAt = now
	m.locks[cp.ID] = &cp
	for _, seat := range lock.Seats {
		m.lockSeats[seatKey{lock.ShowtimeID, seat}] = lock.ID
	}
	lock.CreatedAt = now
	return nil
}

func (m *MemStore) Acquire(_ context.Context, lock *models.SeatLock, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return err
	}
	return m.acquireLocked(lock, now)
}

func (m *MemStore) releaseLocked(lockID string, now time.Time) bool {
	lock, ok := m.locks[lockID]
	if !ok || lock.ReleasedAt != nil {
		return false
	}
	released := now
	lock.ReleasedAt = &released
	for _, seat := range lock.Seats {
		key := seatKey{lock.ShowtimeID, seat}
		if m.lockSeats[key] == lockID {
			delete(m.lockSeats, key)
		}
	}
	return true
}

func (m *MemStore) Release(_ context.Context, lockID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return false, err
	}
	return m.releaseLocked(lockID, now), nil
}

func (m *MemStore) Extend(_ context.Context, lockID string, expiresAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return err
	}

	lock, ok := m.locks[lockID]
	if !ok || lock.ReleasedAt != nil || !now.Before(lock.ExpiresAt) {
		return apperrors.ErrNotFound
	}
	lock.ExpiresAt = expiresAt

	for _, b := range m.bookings {
		if b.LockID != nil && *b.LockID == lockID && b.Status == models.StatusPendingPayment {
			expiry := expiresAt
			b.LockExpiresAt = &expiry
			b.UpdatedAt = now
		}
	}
	return nil
}

func (m *MemStore) GetByID(_ context.Context, lockID string) (*models.SeatLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[lockID]
	if !ok {
		return nil, nil
	}
	cp := *lock
	cp.Seats = append([]string(nil), lock.Seats...)
	return &cp, nil
}

func (m *MemStore) Expired(_ context.Context, now time.Time, limit int) ([]models.SeatLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []models.SeatLock
	for _, lock := range m.locks {
		if lock.ReleasedAt == nil && !now.Before(lock.ExpiresAt) {
			cp := *lock
			cp.Seats = append([]string(nil), lock.Seats...)
			expired = append(expired, cp)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

// --- BookingStore ---

func (m *MemStore) Reserve(_ context.Context, booking *models.Booking, lock *models.SeatLock, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return err
	}

	if _, ok := m.users[booking.UserID]; !ok {
		return apperrors.ErrNotFound
	}
	if err := m.acquireLocked(lock, now); err != nil {
		return err
	}

	cp := *booking
	cp.Seats = append([]string(nil), booking.Seats...)
	lockID := lock.ID
	expiry := lock.ExpiresAt
	cp.LockID = &lockID
	cp.LockExpiresAt = &expiry
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.bookings[cp.ID] = &cp

	booking.LockID = &lockID
	booking.LockExpiresAt = &expiry
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func copyBooking(b *models.Booking) *models.Booking {
	cp := *b
	cp.Seats = append([]string(nil), b.Seats...)
	return &cp
}

func (m *MemStore) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	return m.bookingByID(id)
}

func (m *MemStore) bookingByID(id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return copyBooking(b), nil
}

func (m *MemStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			list = append(list, *copyBooking(b))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemStore) Confirm(_ context.Context, bookingID, transactionID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return nil, "", err
	}

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, "", apperrors.ErrNotFound
	}
	prev := b.Status
	if prev != models.StatusPendingPayment {
		return nil, prev, apperrors.ErrInvalidState
	}
	if b.LockID == nil {
		return nil, prev, apperrors.ErrExpired
	}
	lock, ok := m.locks[*b.LockID]
	if !ok || !lock.Active(now) {
		return nil, prev, apperrors.ErrExpired
	}

	for _, seat := range b.Seats {
		if _, held := m.bookingSeats[seatKey{b.ShowtimeID, seat}]; held {
			return nil, prev, apperrors.ErrConflict
		}
	}
	for _, seat := range b.Seats {
		m.bookingSeats[seatKey{b.ShowtimeID, seat}] = b.ID
	}

	m.releaseLocked(*b.LockID, now)

	b.Status = models.StatusConfirmed
	txn := transactionID
	b.PaymentTransactionID = &txn
	confirmedAt := now
	b.ConfirmedAt = &confirmedAt
	b.UpdatedAt = now
	return copyBooking(b), prev, nil
}

func (m *MemStore) Cancel(_ context.Context, bookingID, reason string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return nil, "", err
	}

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, "", apperrors.ErrNotFound
	}
	prev := b.Status
	if !prev.CanTransitionTo(models.StatusCancelled) {
		return nil, prev, apperrors.ErrInvalidState
	}

	m.cancelLocked(b, reason, now)
	return copyBooking(b), prev, nil
}

func (m *MemStore) cancelLocked(b *models.Booking, reason string, now time.Time) {
	if b.LockID != nil {
		m.releaseLocked(*b.LockID, now)
	}
	m.freeBookingSeats(b.ID)

	b.Status = models.StatusCancelled
	cancelledAt := now
	b.CancelledAt = &cancelledAt
	r := reason
	b.CancellationReason = &r
	b.UpdatedAt = now
}

func (m *MemStore) freeBookingSeats(bookingID string) {
	for key, owner := range m.bookingSeats {
		if owner == bookingID {
			delete(m.bookingSeats, key)
		}
	}
}

func (m *MemStore) Expire(_ context.Context, bookingID string, now time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if b.Status != models.StatusPendingPayment {
		return nil, apperrors.ErrInvalidState
	}

	m.cancelLocked(b, models.ReasonLockExpired, now)
	return copyBooking(b), nil
}

// ExpiredPendingBookings lists pending bookings whose lock expiry has passed
// and whose lock is already gone, oldest expiry first, bounded to limit rows.
// Bookings still holding an unreleased expired lock are left to the
// expired-locks scan.
func (m *MemStore) ExpiredPendingBookings(_ context.Context, now time.Time, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []models.Booking
	for _, b := range m.bookings {
		if b.Status != models.StatusPendingPayment ||
			b.LockExpiresAt == nil || now.Before(*b.LockExpiresAt) {
			continue
		}
		if b.LockID != nil {
			if lock, ok := m.locks[*b.LockID]; ok && lock.ReleasedAt == nil {
				continue
			}
		}
		list = append(list, *copyBooking(b))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LockExpiresAt.Before(*list[j].LockExpiresAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemStore) MarkRefundPending(_ context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return m.swapStatus(bookingID, models.StatusConfirmed, models.StatusRefundPending, now, false)
}

func (m *MemStore) MarkRefunded(_ context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return m.swapStatus(bookingID, models.StatusRefundPending, models.StatusRefunded, now, true)
}

func (m *MemStore) swapStatus(bookingID string, from, to models.BookingStatus, now time.Time, freeSeats bool) (*models.Booking, models.BookingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return nil, "", err
	}

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, "", apperrors.ErrNotFound
	}
	prev := b.Status
	if prev != from {
		return nil, prev, apperrors.ErrInvalidState
	}

	if freeSeats {
		m.freeBookingSeats(b.ID)
	}
	b.Status = to
	b.UpdatedAt = now
	return copyBooking(b), prev, nil
}

// --- LedgerStore ---

func (m *MemStore) RecordAttempt(_ context.Context, entry *models.TransactionLog, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientFailure(); err != nil {
		return err
	}

	if _, exists := m.ledger[entry.TransactionID]; exists {
		return apperrors.ErrDuplicateTransaction
	}
	if _, ok := m.bookings[entry.BookingID]; !ok {
		return apperrors.ErrNotFound
	}

	cp := *entry
	cp.Status = models.TxnPending
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.ledger[cp.TransactionID] = &cp

	entry.Status = models.TxnPending
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return nil
}

func (m *MemStore) RecordResult(_ context.Context, transactionID string, status models.TransactionStatus, gatewayResponse models.Payload, failureReason *string, now time.Time) (*models.TransactionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.ledger[transactionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	if status == models.TxnSuccess {
		for _, other := range m.ledger {
			if other.TransactionID != transactionID &&
				other.BookingID == entry.BookingID &&
				other.Status == models.TxnSuccess {
				return nil, apperrors.ErrDuplicateTransaction
			}
		}
	}

	entry.Status = status
	entry.GatewayResponse = gatewayResponse
	entry.FailureReason = failureReason
	entry.UpdatedAt = now

	cp := *entry
	return &cp, nil
}

func (m *MemStore) GetByTransactionID(_ context.Context, transactionID string) (*models.TransactionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledger[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (m *MemStore) ListByBooking(_ context.Context, bookingID string) ([]models.TransactionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []models.TransactionLog
	for _, entry := range m.ledger {
		if entry.BookingID == bookingID {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// --- ShowtimeCatalog ---

func (m *MemStore) GetShowtimeByID(_ context.Context, id string) (*models.Showtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	showtime, ok := m.showtimes[id]
	if !ok {
		return nil, nil
	}
	cp := *showtime
	return &cp, nil
}

func (m *MemStore) SearchShowtimes(_ context.Context, _, _, _ string, _, _ int) ([]models.Showtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []models.Showtime
	for _, showtime := range m.showtimes {
		list = append(list, *showtime)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *MemStore) IndexShowtime(_ context.Context, showtime *models.Showtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *showtime
	m.showtimes[cp.ID] = &cp
	return nil
}

func (m *MemStore) CountShowtimes(_ context.Context, _, _, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.showtimes)), nil
}

// --- UserDirectory ---

func (m *MemStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (m *MemStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return ok && user.IsActive, nil
}
