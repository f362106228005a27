package audit

import (
	"context"
	"errors"

	"mailadmin/pkg/bus"
)

const (
	// DefaultSubject is the NATS subject appended events are published on.
	DefaultSubject = "mailadmin.audit.appended"
	// StreamName is the JetStream stream that retains published events.
	StreamName = "MAILADMIN_AUDIT"
)

// BusPublisher publishes appended events as JSON over NATS JetStream.
type BusPublisher struct {
	bus     *bus.Bus
	subject string
}

// NewBusPublisher returns a publisher on subject, or DefaultSubject when empty.
func NewBusPublisher(b *bus.Bus, subject string) (*BusPublisher, error) {
	if b == nil {
		return nil, errors.New("bus is required")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &BusPublisher{bus: b, subject: subject}, nil
}

// Publish sends e to the configured subject.
func (p *BusPublisher) Publish(ctx context.Context, e Event) error {
	return p.bus.Publish(ctx, p.subject, e)
}
