package models

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	StatusPendingPayment BookingStatus = "pending_payment"
	StatusConfirmed      BookingStatus = "confirmed"
	StatusCancelled      BookingStatus = "cancelled"
	StatusRefundPending  BookingStatus = "refund_pending"
	StatusRefunded       BookingStatus = "refunded"
)

// bookingTransitions is the full transition table. cancelled and refunded are
// terminal. Direct cancellation from confirmed is permitted; the money-back
// path goes through refund_pending.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusRefundPending, StatusCancelled},
	StatusRefundPending:  {StatusRefunded},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Valid reports whether s is one of the five known states.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusCancelled, StatusRefundPending, StatusRefunded:
		return true
	}
	return false
}

// HoldsSeats reports whether a booking in this state keeps its seats out of
// the available pool. refund_pending still holds seats until the refund
// completes.
func (s BookingStatus) HoldsSeats() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusRefundPending:
		return true
	}
	return false
}

// Cancellation reasons recorded on bookings.
const (
	ReasonLockExpired   = "lock_expired"
	ReasonPaymentFailed = "payment_failed"
	ReasonUserRequested = "user_requested"
)

// PaymentMethod enumerates the accepted payment instruments.
type PaymentMethod string

const (
	MethodCreditCard    PaymentMethod = "credit_card"
	MethodDebitCard     PaymentMethod = "debit_card"
	MethodDigitalWallet PaymentMethod = "digital_wallet"
	MethodNetBanking    PaymentMethod = "net_banking"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodDigitalWallet, MethodNetBanking:
		return true
	}
	return false
}

// TransactionStatus is the state of one ledger entry.
type TransactionStatus string

const (
	TxnPending  TransactionStatus = "pending"
	TxnSuccess  TransactionStatus = "success"
	TxnFailed   TransactionStatus = "failed"
	TxnRefunded TransactionStatus = "refunded"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxnPending, TxnSuccess, TxnFailed, TxnRefunded:
		return true
	}
	return false
}

// NotificationType and NotificationStatus mirror the notification_logs schema.
type NotificationType string

const (
	NotifyEmail NotificationType = "email"
	NotifySMS   NotificationType = "sms"
	NotifyPush  NotificationType = "push"
)

type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationPending NotificationStatus = "pending"
)
