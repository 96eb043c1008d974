package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cinebook/internal/models"
	"cinebook/internal/repository"

	"github.com/nats-io/stan.go"
)

// Handlers process lifecycle events off the bus. The notification recorder
// is deliberately the only writer of notification_logs: the reservation core
// publishes events and moves on.
type Handlers struct {
	repos *repository.Repositories
}

func NewHandlers(repos *repository.Repositories) *Handlers {
	return &Handlers{repos: repos}
}

// HandleBookingStatusChanged records an email notification for every
// state-machine transition a user should hear about.
func (h *Handlers) HandleBookingStatusChanged(m *stan.Msg) {
	var event models.BookingStatusChangedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking status event", "error", err)
		return
	}

	ctx := context.Background()

	user, err := h.repos.Users.GetByID(ctx, event.UserID)
	if err != nil {
		slog.Error("Failed to resolve user for notification",
			"user_id", event.UserID, "error", err)
		return
	}
	if user == nil {
		slog.Warn("Dropping notification for unknown user", "user_id", event.UserID)
		m.Ack()
		return
	}

	subject := notificationSubject(event)
	entry := &models.NotificationLog{
		EventID:          event.BookingID,
		NotificationType: models.NotifyEmail,
		Recipient:        user.Email,
		Subject:          &subject,
		Status:           models.NotificationPending,
		EventData: models.Payload{
			"booking_id": event.BookingID,
			"old_status": string(event.OldStatus),
			"new_status": string(event.NewStatus),
			"reason":     event.Reason,
		},
	}

	if err := h.repos.Notifications.Create(ctx, entry); err != nil {
		slog.Error("Failed to record notification",
			"booking_id", event.BookingID, "error", err)
		return
	}

	// Delivery is simulated; the record is the point.
	if err := h.repos.Notifications.MarkSent(ctx, entry.ID, time.Now()); err != nil {
		slog.Error("Failed to mark notification sent", "id", entry.ID, "error", err)
		return
	}

	slog.Info("Recorded booking notification",
		"booking_id", event.BookingID,
		"recipient", user.Email,
		"new_status", event.NewStatus)

	m.Ack()
}

// HandleLockExpired logs expired-lock events for visibility. Seat recovery
// itself already happened in the reaper.
func (h *Handlers) HandleLockExpired(m *stan.Msg) {
	var event models.LockExpiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal lock expired event", "error", err)
		return
	}

	slog.Info("Seat lock expired",
		"lock_id", event.LockID,
		"booking_id", event.BookingID,
		"showtime_id", event.ShowtimeID,
		"seats", event.Seats)

	m.Ack()
}

func notificationSubject(event models.BookingStatusChangedEvent) string {
	switch event.NewStatus {
	case models.StatusConfirmed:
		return "Your booking is confirmed"
	case models.StatusCancelled:
		if event.Reason == models.ReasonLockExpired {
			return "Your reservation expired"
		}
		return "Your booking was cancelled"
	case models.StatusRefundPending:
		return "Your refund is being processed"
	case models.StatusRefunded:
		return "Your refund is complete"
	}
	return fmt.Sprintf("Booking update: %s", event.NewStatus)
}
