package consumers

import (
	"fmt"
	"log/slog"

	"cinebook/internal/messaging"
	"cinebook/internal/models"
	"cinebook/internal/repository"

	"github.com/nats-io/stan.go"
)

// ConsumerService subscribes the event handlers to their subjects using
// durable queue groups, so replicas share the work and reconnects resume
// where they left off.
type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats *messaging.NATSClient, repos *repository.Repositories) *ConsumerService {
	return &ConsumerService{
		nats:     nats,
		handlers: NewHandlers(repos),
	}
}

func (s *ConsumerService) Start() error {
	subscriptions := []struct {
		subject string
		queue   string
		handler stan.MsgHandler
	}{
		{models.EventBookingStatusChanged, "notifications", s.handlers.HandleBookingStatusChanged},
		{models.EventLockExpired, "notifications", s.handlers.HandleLockExpired},
	}

	for _, sub := range subscriptions {
		subscription, err := s.nats.SubscribeQueue(sub.subject, sub.queue, sub.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.subject, err)
		}
		s.subs = append(s.subs, subscription)
	}

	slog.Info("Consumer service started", "subscriptions", len(s.subs))
	return nil
}

func (s *ConsumerService) Stop() {
	for _, sub := range s.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Failed to close subscription", "error", err)
		}
	}
	slog.Info("Consumer service stopped")
}
