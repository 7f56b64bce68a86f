package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/events/kafka"
)

// Notifier delivers a text message to a storefront user or admin. Delivery is
// best-effort: implementations log failures and never propagate them into the
// operation that triggered the notification.
type Notifier interface {
	Notify(ctx context.Context, recipientID, text string)
}

// Message is the payload published to the bot-gateway topic. The gateway owns
// turning it into an actual Telegram message.
type Message struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

// KafkaNotifier publishes notifications to the bot gateway via Kafka.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
}

// NewKafkaNotifier creates a notifier backed by the given producer. A nil
// producer yields a notifier that only logs, for environments without Kafka.
func NewKafkaNotifier(producer *kafka.Producer, topic string, logger zerolog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify queues one message for the recipient.
func (n *KafkaNotifier) Notify(ctx context.Context, recipientID, text string) {
	if n.producer == nil {
		n.logger.Debug().Str("recipient_id", recipientID).Msg("Notifications disabled, dropping message")
		return
	}

	msg := Message{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Text:        text,
		SentAt:      time.Now(),
	}
	if err := n.producer.Send(n.topic, recipientID, msg); err != nil {
		n.logger.Error().Err(err).Str("recipient_id", recipientID).Msg("Failed to queue notification")
	}
}

// AdminBroadcaster fans a message out to the configured admin recipients. The
// admin list is resolved once at startup and shared by reference.
type AdminBroadcaster struct {
	notifier Notifier
	adminIDs []string
	logger   zerolog.Logger
}

// NewAdminBroadcaster creates an admin fan-out helper
func NewAdminBroadcaster(notifier Notifier, adminIDs []string, logger zerolog.Logger) *AdminBroadcaster {
	return &AdminBroadcaster{
		notifier: notifier,
		adminIDs: adminIDs,
		logger:   logger.With().Str("component", "admin-broadcast").Logger(),
	}
}

// Broadcast sends the text to every admin.
func (b *AdminBroadcaster) Broadcast(ctx context.Context, text string) {
	if len(b.adminIDs) == 0 {
		b.logger.Warn().Msg("No admin recipients configured, dropping broadcast")
		return
	}
	for _, id := range b.adminIDs {
		b.notifier.Notify(ctx, id, text)
	}
}
