package models

import "time"

// ReserveSeatsRequest creates a pending_payment booking together with its
// seat lock. Seats must be non-empty; duplicates are rejected.
type ReserveSeatsRequest struct {
	ShowtimeID string   `json:"showtime_id" binding:"required"`
	Seats      []string `json:"seats" binding:"required"`
}

// ReserveSeatsResponse returns the lock handle alongside the booking.
type ReserveSeatsResponse struct {
	BookingID     string    `json:"booking_id"`
	LockID        string    `json:"lock_id"`
	LockExpiresAt time.Time `json:"lock_expires_at"`
	TotalAmount   float64   `json:"total_amount"`
}

// ConfirmBookingRequest moves a booking from pending_payment to confirmed.
type ConfirmBookingRequest struct {
	BookingID     string `json:"booking_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

// CancelBookingRequest cancels from pending_payment or confirmed.
type CancelBookingRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Reason    string `json:"reason"`
}

// RefundRequest drives the confirmed -> refund_pending -> refunded path.
type RefundRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// ExtendLockRequest pushes an active lock's expiry further out.
type ExtendLockRequest struct {
	LockID string `json:"lock_id" binding:"required"`
}

// ReleaseLockRequest releases a lock explicitly; releasing an already
// expired or released lock is a no-op.
type ReleaseLockRequest struct {
	LockID string `json:"lock_id" binding:"required"`
}

// LockResponse describes a lock's current state.
type LockResponse struct {
	LockID    string    `json:"lock_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Released  bool      `json:"released"`
}

// RecordAttemptRequest opens a pending ledger entry for a payment attempt.
type RecordAttemptRequest struct {
	TransactionID  string        `json:"transaction_id" binding:"required"`
	BookingID      string        `json:"booking_id" binding:"required"`
	Amount         float64       `json:"amount"`
	PaymentMethod  PaymentMethod `json:"payment_method" binding:"required"`
	PaymentDetails Payload       `json:"payment_details"`
}

// PaymentResultRequest is the gateway webhook payload: the outcome of a
// previously recorded attempt.
type PaymentResultRequest struct {
	TransactionID   string            `json:"transaction_id" binding:"required"`
	Status          TransactionStatus `json:"status" binding:"required"`
	GatewayResponse Payload           `json:"gateway_response"`
	FailureReason   *string           `json:"failure_reason"`
}

// InitiatePaymentRequest starts a gateway payment for a pending booking.
type InitiatePaymentRequest struct {
	BookingID     string        `json:"booking_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
}

// InitiatePaymentResponse carries the gateway redirect URL and the ledger
// transaction id the gateway will report back with.
type InitiatePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
}

// CreateShowtimeRequest indexes a showtime into the catalog.
type CreateShowtimeRequest struct {
	ID         string    `json:"id"`
	MovieID    string    `json:"movie_id" binding:"required"`
	MovieTitle string    `json:"movie_title" binding:"required"`
	CinemaID   string    `json:"cinema_id" binding:"required"`
	ScreenID   string    `json:"screen_id" binding:"required"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required"`
	BasePrice  float64   `json:"base_price"`
}

// CreateShowtimeResponse returns the catalog id.
type CreateShowtimeResponse struct {
	ID string `json:"id"`
}

// ListBookingsResponseItem is one row of a user's booking history.
type ListBookingsResponseItem struct {
	ID          string        `json:"id"`
	ShowtimeID  string        `json:"showtime_id"`
	Seats       []string      `json:"seats"`
	Status      BookingStatus `json:"status"`
	TotalAmount float64       `json:"total_amount"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ListBookingsResponse is a user's booking history, newest first.
type ListBookingsResponse []ListBookingsResponseItem
