// Package kafka publishes mutation events to a Kafka topic. Events are
// keyed by record id so all events for one record land on one partition
// in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/engramco/engram/pkg/events"
	"github.com/engramco/engram/pkg/logger"
)

const defaultWriteTimeout = 10 * time.Second

// Config carries the Kafka connection settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes events to Kafka via kafka-go's batching writer.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	p := &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{},
			WriteTimeout: defaultWriteTimeout,
			RequiredAcks: kafkago.RequireOne,
		},
		logger: logger.Nop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Publish serializes the event to JSON and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	if event == nil {
		return events.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.RecordID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"record_id", event.RecordID,
	)

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
