package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cinebook/internal/external"
	"cinebook/internal/models"
)

// The view types adapt MemStore to the per-concern store interfaces, since
// several of them share method names.

type LockView struct{ m *MemStore }

func (v LockView) Acquire(ctx context.Context, lock *models.SeatLock, now time.Time) error {
	return v.m.Acquire(ctx, lock, now)
}
func (v LockView) Release(ctx context.Context, lockID string, now time.Time) (bool, error) {
	return v.m.Release(ctx, lockID, now)
}
func (v LockView) Extend(ctx context.Context, lockID string, expiresAt, now time.Time) error {
	return v.m.Extend(ctx, lockID, expiresAt, now)
}
func (v LockView) GetByID(ctx context.Context, lockID string) (*models.SeatLock, error) {
	return v.m.GetByID(ctx, lockID)
}
func (v LockView) Expired(ctx context.Context, now time.Time, limit int) ([]models.SeatLock, error) {
	return v.m.Expired(ctx, now, limit)
}

type BookingView struct{ m *MemStore }

func (v BookingView) Reserve(ctx context.Context, booking *models.Booking, lock *models.SeatLock, now time.Time) error {
	return v.m.Reserve(ctx, booking, lock, now)
}
func (v BookingView) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return v.m.GetBookingByID(ctx, id)
}
func (v BookingView) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Booking, error) {
	return v.m.ListByUser(ctx, userID, limit, offset)
}
func (v BookingView) Confirm(ctx context.Context, bookingID, transactionID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return v.m.Confirm(ctx, bookingID, transactionID, now)
}
func (v BookingView) Cancel(ctx context.Context, bookingID, reason string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return v.m.Cancel(ctx, bookingID, reason, now)
}
func (v BookingView) Expire(ctx context.Context, bookingID string, now time.Time) (*models.Booking, error) {
	return v.m.Expire(ctx, bookingID, now)
}
func (v BookingView) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	return v.m.ExpiredPendingBookings(ctx, now, limit)
}
func (v BookingView) MarkRefundPending(ctx context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return v.m.MarkRefundPending(ctx, bookingID, now)
}
func (v BookingView) MarkRefunded(ctx context.Context, bookingID string, now time.Time) (*models.Booking, models.BookingStatus, error) {
	return v.m.MarkRefunded(ctx, bookingID, now)
}

type LedgerView struct{ m *MemStore }

func (v LedgerView) RecordAttempt(ctx context.Context, entry *models.TransactionLog, now time.Time) error {
	return v.m.RecordAttempt(ctx, entry, now)
}
func (v LedgerView) RecordResult(ctx context.Context, transactionID string, status models.TransactionStatus, gatewayResponse models.Payload, failureReason *string, now time.Time) (*models.TransactionLog, error) {
	return v.m.RecordResult(ctx, transactionID, status, gatewayResponse, failureReason, now)
}
func (v LedgerView) GetByTransactionID(ctx context.Context, transactionID string) (*models.TransactionLog, error) {
	return v.m.GetByTransactionID(ctx, transactionID)
}
func (v LedgerView) ListByBooking(ctx context.Context, bookingID string) ([]models.TransactionLog, error) {
	return v.m.ListByBooking(ctx, bookingID)
}

type ShowtimeView struct{ m *MemStore }

func (v ShowtimeView) GetByID(ctx context.Context, id string) (*models.Showtime, error) {
	return v.m.GetShowtimeByID(ctx, id)
}
func (v ShowtimeView) Search(ctx context.Context, query, cinemaID, date string, page, pageSize int) ([]models.Showtime, error) {
	return v.m.SearchShowtimes(ctx, query, cinemaID, date, page, pageSize)
}
func (v ShowtimeView) Index(ctx context.Context, showtime *models.Showtime) error {
	return v.m.IndexShowtime(ctx, showtime)
}
func (v ShowtimeView) Count(ctx context.Context, query, cinemaID, date string) (int64, error) {
	return v.m.CountShowtimes(ctx, query, cinemaID, date)
}

type UserView struct{ m *MemStore }

func (v UserView) GetByID(ctx context.Context, id string) (*models.User, error) {
	return v.m.GetUserByID(ctx, id)
}
func (v UserView) Exists(ctx context.Context, id string) (bool, error) {
	return v.m.Exists(ctx, id)
}

func (m *MemStore) LockStore() LockView         { return LockView{m} }
func (m *MemStore) BookingStore() BookingView   { return BookingView{m} }
func (m *MemStore) LedgerStore() LedgerView     { return LedgerView{m} }
func (m *MemStore) ShowtimeCatalog() ShowtimeView { return ShowtimeView{m} }
func (m *MemStore) UserDirectory() UserView     { return UserView{m} }

// Event is one published message captured by the recorder.
type Event struct {
	Subject string
	Data    interface{}
}

// EventRecorder captures published events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Publish(subject string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Subject: subject, Data: data})
	return nil
}

// Events returns a snapshot of everything published so far.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// BySubject returns the events published on one subject.
func (r *EventRecorder) BySubject(subject string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Event
	for _, e := range r.events {
		if e.Subject == subject {
			matched = append(matched, e)
		}
	}
	return matched
}

// FakeGateway is a scriptable payment gateway.
type FakeGateway struct {
	mu        sync.Mutex
	initCount int
	refunds   []string
	cancels   []string

	// FailInit makes InitPayment fail.
	FailInit bool
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) InitPayment(amount int64, orderID, currency, description string) (*external.PaymentInitResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailInit {
		return nil, errors.New("gateway rejected init")
	}
	g.initCount++
	paymentID := fmt.Sprintf("pay-%d", g.initCount)
	return &external.PaymentInitResponse{
		Success:    true,
		PaymentID:  paymentID,
		OrderID:    orderID,
		Status:     "NEW",
		Amount:     amount,
		Currency:   currency,
		PaymentURL: "https://gateway.test/pay/" + paymentID,
	}, nil
}

func (g *FakeGateway) RefundPayment(paymentID string, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, paymentID)
	return nil
}

func (g *FakeGateway) CancelPayment(paymentID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, paymentID)
	return nil
}

// Refunds returns the payment ids refunds were requested for.
func (g *FakeGateway) Refunds() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.refunds...)
}
