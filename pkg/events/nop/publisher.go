package nop

import (
	"context"

	"github.com/engramco/engram/pkg/events"
)

// Publisher is a no-op event publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op event publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish validates input and otherwise does nothing.
func (p *Publisher) Publish(_ context.Context, event *events.Event) error {
	if event == nil {
		return events.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
