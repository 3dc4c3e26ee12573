package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeKind = "topic"

// Publisher is the interface implemented by types that can publish ledger events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer publishes JSON events to a durable topic exchange.
type EventProducer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	logger   *slog.Logger
	declared map[string]bool
}

// LoggingPublisher stands in for the broker when RABBITMQ_URL is not set.
// Events are logged and reported as published.
type LoggingPublisher struct {
	Logger *slog.Logger
}

func (p *LoggingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("broker disabled, event not published", "exchange", exchange, "routing_key", routingKey)
	return nil
}

func (p *LoggingPublisher) Close() {}

// SanitizeURL strips quotes and stray characters around an AMQP URL and checks its scheme.
func SanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and opens a channel.
func NewEventProducer(amqpURL string, logger *slog.Logger) (*EventProducer, error) {
	cleanURL, err := SanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &EventProducer{conn: conn, channel: ch, logger: logger, declared: map[string]bool{}}, nil
}

// Publish marshals body to JSON and publishes it as a persistent message.
// A json.RawMessage body is sent unchanged.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.publish(ctx, exchange, routingKey, payload); err != nil {
		p.logger.Warn("publish failed, reopening channel", "exchange", exchange, "routing_key", routingKey, "error", err)
		if reopenErr := p.reopenChannel(); reopenErr != nil {
			return fmt.Errorf("publish to %s: %w", exchange, err)
		}
		if err := p.publish(ctx, exchange, routingKey, payload); err != nil {
			return fmt.Errorf("publish to %s after reopen: %w", exchange, err)
		}
	}

	p.logger.Debug("event published", "exchange", exchange, "routing_key", routingKey)
	return nil
}

func (p *EventProducer) publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[exchange] = true
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (p *EventProducer) reopenChannel() error {
	if p.conn == nil || p.conn.IsClosed() {
		return amqp.ErrClosed
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if p.channel != nil {
		p.channel.Close()
	}
	p.channel = ch
	p.declared = map[string]bool{}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
