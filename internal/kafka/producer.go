package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/garagehub/billing-service/pkg/logger"
)

// Billing event types published after successful mutations.
const (
	EventSubscriptionActivated = "subscription_activated"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventSubscriptionPaused    = "subscription_paused"
	EventSubscriptionResumed   = "subscription_resumed"
	EventBonusOffersCredited   = "bonus_offers_credited"
)

// TopicBillingEvents carries every billing event, keyed by account id so
// events for one account stay ordered.
const TopicBillingEvents = "billing.events"

// BillingEvent is the message published to Kafka after a billing mutation.
type BillingEvent struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Plan       string    `json:"plan,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	ProviderID string    `json:"provider_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Producer publishes billing events.
type Producer interface {
	PublishBillingEvent(ctx context.Context, event BillingEvent) error
	Close() error
}

type producer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer creates a Kafka producer for billing events.
func NewProducer(brokers []string, log *logger.Logger) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        TopicBillingEvents,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &producer{writer: writer, log: log}
}

func (p *producer) PublishBillingEvent(ctx context.Context, event BillingEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal billing event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
	}

	// Broker hiccups are retried; the billing mutation already committed,
	// so dropping the event silently is worse than a short delay.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	operation := func() error {
		return p.writer.WriteMessages(ctx, msg)
	}

	if err := backoff.Retry(operation, policy); err != nil {
		p.log.Errorw("Failed to publish billing event", "error", err,
			"type", event.Type, "accountID", event.AccountID)
		return fmt.Errorf("kafka: failed to publish billing event: %w", err)
	}

	p.log.Debugw("Billing event published", "type", event.Type, "accountID", event.AccountID)
	return nil
}

func (p *producer) Close() error {
	return p.writer.Close()
}
