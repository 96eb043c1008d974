package repository

import (
	"cinebook/internal/database"
	"cinebook/internal/search"

	"github.com/lib/pq"
)

// Postgres error codes the repositories branch on.
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

// Repositories bundles every store implementation behind one constructor.
type Repositories struct {
	Users         *UserRepository
	Bookings      *BookingRepository
	Locks         *SeatLockRepository
	Ledger        *TransactionLogRepository
	Notifications *NotificationLogRepository
	Showtimes     *ShowtimeRepository
}

func New(db *database.DB, es *search.Client) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Bookings:      NewBookingRepository(db),
		Locks:         NewSeatLockRepository(db),
		Ledger:        NewTransactionLogRepository(db),
		Notifications: NewNotificationLogRepository(db),
		Showtimes:     NewShowtimeRepository(es),
	}
}
