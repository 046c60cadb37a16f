// Package publisher relays checkout attempt events from the outbox table to
// Kafka and fails attempts that were abandoned before reaching a quote.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	r "github.com/fjod/go_checkout/checkout-service/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "checkout-attempts"

	// ErrorCodeAbandoned marks attempts failed by the poller.
	ErrorCodeAbandoned = "ABANDONED"

	batchSize = 100
)

// Store is what the poller needs from the attempt repository.
type Store interface {
	r.OutboxStore
	TransitionAttempt(ctx context.Context, id string, upd r.AttemptUpdate) (*d.CheckoutAttempt, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	EventTick    time.Duration
	RecoveryTick time.Duration
	// AbandonAfter is how long an attempt may stay PENDING.
	AbandonAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.EventTick <= 0 {
		c.EventTick = time.Second
	}
	if c.RecoveryTick <= 0 {
		c.RecoveryTick = 30 * time.Second
	}
	if c.AbandonAfter <= 0 {
		c.AbandonAfter = 15 * time.Minute
	}
	return c
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	abandonAfter time.Duration
	repo         Store
	writer       messageWriter
}

func NewOutboxPoller(repo Store, cfg Config) *OutboxPoller {
	cfg = cfg.withDefaults()
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    cfg.EventTick,
		recoveryTick: cfg.RecoveryTick,
		abandonAfter: cfg.AbandonAfter,
		repo:         repo,
		writer:       w,
	}
}

// Run polls until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.failAbandonedAttempts(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	// An attempt whose event is left unprocessed holds back its later events
	// until the next tick, so consumers see each attempt in order.
	blocked := map[string]bool{}
	for _, event := range events {
		if blocked[event.AggregateId] {
			continue
		}
		if err := p.publish(ctx, event); err != nil {
			slog.ErrorContext(ctx, "failed to publish outbox event",
				"event_id", event.ID,
				"event_type", event.EventType,
				"aggregate_id", event.AggregateId,
				"error", err)
			blocked[event.AggregateId] = true
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark outbox event as processed",
				"event_id", event.ID,
				"error", err)
			blocked[event.AggregateId] = true
		}
	}
}

// failAbandonedAttempts moves attempts stuck in PENDING to FAILED. The
// transition writes its own outbox event.
func (p *OutboxPoller) failAbandonedAttempts(ctx context.Context) {
	attempts, err := p.repo.GetStaleAttempts(ctx, p.abandonAfter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get stale checkout attempts", "error", err)
		return
	}
	for _, a := range attempts {
		_, err := p.repo.TransitionAttempt(ctx, a.ID, r.AttemptUpdate{
			Status:       d.CheckoutStatusFailed,
			ErrorCode:    ErrorCodeAbandoned,
			ErrorMessage: fmt.Sprintf("no quote after %s", p.abandonAfter),
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to fail abandoned checkout attempt",
				"attempt_id", a.ID,
				"error", err)
			continue
		}
		slog.InfoContext(ctx, "abandoned checkout attempt failed", "attempt_id", a.ID)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // attempt id keeps per-attempt ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
