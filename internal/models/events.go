package models

import "time"

// NATS subjects published by the reservation core.
const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
	EventLockExpired          = "lock.expired"
	EventPaymentRecorded      = "payment.recorded"
)

// BookingCreatedEvent is published when a reservation lands.
type BookingCreatedEvent struct {
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	ShowtimeID    string    `json:"showtime_id"`
	Seats         []string  `json:"seats"`
	TotalAmount   float64   `json:"total_amount"`
	LockID        string    `json:"lock_id"`
	LockExpiresAt time.Time `json:"lock_expires_at"`
	Timestamp     time.Time `json:"timestamp"`
}

// BookingStatusChangedEvent is published on every state-machine transition.
// The notification dispatcher consumes it; the core never writes
// notification_logs directly.
type BookingStatusChangedEvent struct {
	BookingID  string        `json:"booking_id"`
	UserID     string        `json:"user_id"`
	ShowtimeID string        `json:"showtime_id"`
	OldStatus  BookingStatus `json:"old_status"`
	NewStatus  BookingStatus `json:"new_status"`
	Reason     string        `json:"reason,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// LockExpiredEvent is published by the reaper for each lock it sweeps.
type LockExpiredEvent struct {
	LockID     string    `json:"lock_id"`
	BookingID  string    `json:"booking_id"`
	ShowtimeID string    `json:"showtime_id"`
	Seats      []string  `json:"seats"`
	Timestamp  time.Time `json:"timestamp"`
}

// PaymentRecordedEvent is published when a ledger entry reaches a final
// status.
type PaymentRecordedEvent struct {
	TransactionID string            `json:"transaction_id"`
	BookingID     string            `json:"booking_id"`
	Status        TransactionStatus `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
}
