package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nanisveeha-crypto/svntex-app/internal/metrics"
	"github.com/nanisveeha-crypto/svntex-app/internal/store"
	"github.com/nanisveeha-crypto/svntex-app/pkg/rabbitmq"
)

const (
	defaultOutboxBatchSize   = 50
	defaultOutboxPollEvery   = 1200 * time.Millisecond
	defaultOutboxStaleAfter  = 2 * time.Minute
	maxOutboxRetryDelaySecs  = 300
	maxOutboxBackoffExponent = 8
)

// PublisherDialer opens a broker publisher. It is called lazily and again after a publish failure.
type PublisherDialer func() (rabbitmq.Publisher, error)

// OutboxDispatcher drains the event outbox to the broker. Events only leave the
// outbox after the ledger transaction that wrote them has committed.
type OutboxDispatcher struct {
	repo         store.OutboxRepository
	dial         PublisherDialer
	publisher    rabbitmq.Publisher
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
	staleAfter   time.Duration
}

func NewOutboxDispatcher(repo store.OutboxRepository, dial PublisherDialer, logger *slog.Logger) *OutboxDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxDispatcher{
		repo:         repo,
		dial:         dial,
		logger:       logger,
		batchSize:    defaultOutboxBatchSize,
		pollInterval: defaultOutboxPollEvery,
		staleAfter:   defaultOutboxStaleAfter,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	defer d.closePublisher()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.flushOnce(ctx); err != nil {
				d.logger.Error("outbox flush failed", "error", err)
			}
		}
	}
}

// flushOnce publishes one claimed batch and returns how many messages were published.
func (d *OutboxDispatcher) flushOnce(ctx context.Context) (int, error) {
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, int(d.staleAfter.Seconds()))
	if err != nil {
		return 0, err
	}

	published := 0
	for _, message := range messages {
		if err := d.publishMessage(ctx, message); err != nil {
			metrics.OutboxMessagesTotal.WithLabelValues("failed").Inc()
			retryAfter := retryDelaySeconds(message.Attempts)
			d.logger.Warn("outbox publish failed",
				"outbox_id", message.ID,
				"routing_key", message.RoutingKey,
				"attempts", message.Attempts,
				"retry_after_seconds", retryAfter,
				"error", err,
			)
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				d.logger.Error("failed to mark outbox message failed", "outbox_id", message.ID, "error", markErr)
			}
			continue
		}
		metrics.OutboxMessagesTotal.WithLabelValues("published").Inc()
		published++
		if err := d.repo.MarkOutboxPublished(ctx, message.ID); err != nil {
			d.logger.Error("failed to mark outbox message published", "outbox_id", message.ID, "error", err)
		}
	}
	return published, nil
}

func (d *OutboxDispatcher) publishMessage(ctx context.Context, message store.OutboxMessage) error {
	if d.publisher == nil {
		publisher, err := d.dial()
		if err != nil {
			return err
		}
		d.publisher = publisher
	}

	if err := d.publisher.Publish(ctx, message.Exchange, message.RoutingKey, json.RawMessage(message.Payload)); err != nil {
		d.closePublisher()
		return err
	}
	return nil
}

func (d *OutboxDispatcher) closePublisher() {
	if d.publisher != nil {
		d.publisher.Close()
		d.publisher = nil
	}
}

// retryDelaySeconds doubles per attempt and is capped at five minutes.
func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, maxOutboxBackoffExponent)
	if delay > maxOutboxRetryDelaySecs {
		return maxOutboxRetryDelaySecs
	}
	return delay
}
