package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Routing keys published on the exchange.
const (
	RoutingAccountRegistered = "account.registered"
	RoutingEntitlementIssued = "entitlement.issued"
	RoutingAccountDeleted    = "account.deleted"
)

const defaultExchange = "mortgage_trainer.events"

// AccountRegistered is emitted once per new account.
type AccountRegistered struct {
	EventType      string    `json:"event_type"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	MarketingOptIn bool      `json:"marketing_opt_in"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// AccountDeleted is emitted after an account and its entitlements are removed.
type AccountDeleted struct {
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EntitlementIssued is emitted when a payment produces a new access token.
type EntitlementIssued struct {
	EventType       string     `json:"event_type"`
	UserID          string     `json:"user_id"`
	Product         string     `json:"product"`
	PaymentIntentID string     `json:"payment_intent_id"`
	AmountMinor     int64      `json:"amount_minor"`
	Currency        string     `json:"currency"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// Publisher sends domain events to a RabbitMQ topic exchange. With no URI it is a no-op.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
	logger   zerolog.Logger
}

// NewPublisher dials RabbitMQ and declares the exchange.
func NewPublisher(uri, exchange string, logger zerolog.Logger) (*Publisher, error) {
	logger = logger.With().Str("component", "event_publisher").Logger()
	if exchange == "" {
		exchange = defaultExchange
	}
	if uri == "" {
		logger.Warn().Msg("RabbitMQ URI is empty, event publishing is disabled")
		return &Publisher{exchange: exchange, logger: logger}, nil
	}

	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
		logger:   logger,
	}, nil
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.enabled
}

// PublishAccountRegistered emits account.registered.
func (p *Publisher) PublishAccountRegistered(ctx context.Context, evt AccountRegistered) error {
	evt.EventType = RoutingAccountRegistered
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return p.publish(ctx, RoutingAccountRegistered, evt)
}

// PublishAccountDeleted emits account.deleted.
func (p *Publisher) PublishAccountDeleted(ctx context.Context, evt AccountDeleted) error {
	evt.EventType = RoutingAccountDeleted
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return p.publish(ctx, RoutingAccountDeleted, evt)
}

// PublishEntitlementIssued emits entitlement.issued.
func (p *Publisher) PublishEntitlementIssued(ctx context.Context, evt EntitlementIssued) error {
	evt.EventType = RoutingEntitlementIssued
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	return p.publish(ctx, RoutingEntitlementIssued, evt)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	if p == nil {
		return nil
	}
	if !p.enabled {
		p.logger.Debug().Str("routing_key", routingKey).Msg("event publishing disabled, skipping")
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Debug().Str("routing_key", routingKey).Msg("event published")
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("close rabbitmq channel")
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
