package models

import (
	"time"
)

// User represents an identity record. The core only reads users (existence
// and credential checks); registration is owned by the user service.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	PhoneNumber  *string   `json:"phone_number" db:"phone_number"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Booking is the central lifecycle record. It is never physically deleted;
// terminal states are reached only through state-machine transitions.
type Booking struct {
	ID                   string        `json:"id" db:"id"`
	UserID               string        `json:"user_id" db:"user_id"`
	ShowtimeID           string        `json:"showtime_id" db:"showtime_id"`
	Seats                []string      `json:"seats" db:"seats"`
	TotalAmount          float64       `json:"total_amount" db:"total_amount"`
	Status               BookingStatus `json:"status" db:"status"`
	LockID               *string       `json:"lock_id" db:"lock_id"`
	LockExpiresAt        *time.Time    `json:"lock_expires_at" db:"lock_expires_at"`
	PaymentTransactionID *string       `json:"payment_transaction_id" db:"payment_transaction_id"`
	ConfirmedAt          *time.Time    `json:"confirmed_at" db:"confirmed_at"`
	CancelledAt          *time.Time    `json:"cancelled_at" db:"cancelled_at"`
	CancellationReason   *string       `json:"cancellation_reason" db:"cancellation_reason"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// SeatLock is the ephemeral exclusive-ownership record for a set of seats on
// one showtime. It is owned by exactly one booking while active and is
// logically destroyed by release, expiry or confirmation.
type SeatLock struct {
	ID         string     `json:"id" db:"id"`
	ShowtimeID string     `json:"showtime_id" db:"showtime_id"`
	BookingID  string     `json:"booking_id" db:"booking_id"`
	Seats      []string   `json:"seats" db:"seats"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	ReleasedAt *time.Time `json:"released_at" db:"released_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Active reports whether the lock still holds its seats at the given instant.
func (l *SeatLock) Active(now time.Time) bool {
	return l.ReleasedAt == nil && now.Before(l.ExpiresAt)
}

// TransactionLog is one payment attempt against a booking, keyed by the
// gateway transaction id. transaction_id is globally unique and a booking can
// have at most one entry in success status.
type TransactionLog struct {
	TransactionID   string            `json:"transaction_id" db:"transaction_id"`
	BookingID       string            `json:"booking_id" db:"booking_id"`
	Amount          float64           `json:"amount" db:"amount"`
	PaymentMethod   PaymentMethod     `json:"payment_method" db:"payment_method"`
	Status          TransactionStatus `json:"status" db:"status"`
	PaymentDetails  Payload           `json:"payment_details,omitempty" db:"payment_details"`
	GatewayResponse Payload           `json:"gateway_response,omitempty" db:"gateway_response"`
	FailureReason   *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// NotificationLog is written by the notification recorder worker, never by
// the reservation core itself.
type NotificationLog struct {
	ID               int64              `json:"id" db:"id"`
	EventID          string             `json:"event_id" db:"event_id"`
	NotificationType NotificationType   `json:"notification_type" db:"notification_type"`
	Recipient        string             `json:"recipient" db:"recipient"`
	Subject          *string            `json:"subject,omitempty" db:"subject"`
	Status           NotificationStatus `json:"status" db:"status"`
	EventData        Payload            `json:"event_data,omitempty" db:"event_data"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	SentAt           *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
}

// Showtime is a scheduled screening instance, served from the search index.
// The cinema service owns showtimes; the core reads them for existence checks
// and pricing.
type Showtime struct {
	ID         string    `json:"id"`
	MovieID    string    `json:"movie_id"`
	MovieTitle string    `json:"movie_title"`
	CinemaID   string    `json:"cinema_id"`
	ScreenID   string    `json:"screen_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	BasePrice  float64   `json:"base_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
