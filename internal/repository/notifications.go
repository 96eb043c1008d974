package repository

import (
	"context"
	"time"

	"cinebook/internal/apperrors"
	"cinebook/internal/database"
	"cinebook/internal/models"
)

type NotificationLogRepository struct {
	db *database.DB
}

func NewNotificationLogRepository(db *database.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Create inserts a notification record and fills in its generated id.
func (r *NotificationLogRepository) Create(ctx context.Context, n *models.NotificationLog) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notification_logs (event_id, notification_type, recipient, subject,
			status, event_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		n.EventID, n.NotificationType, n.Recipient, n.Subject, n.Status, n.EventData).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

// MarkSent records the delivery time and flips the status to sent.
func (r *NotificationLogRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_logs SET status = $2, sent_at = $3 WHERE id = $1`,
		id, models.NotificationSent, at)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}
