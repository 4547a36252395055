package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// flushTimeout bounds the flush when the caller's context has no deadline.
const flushTimeout = 5 * time.Second

// NATSPublisher publishes JSON-encoded report events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url. Events go to subject.
func NewNATSPublisher(url, subject string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{nats.Name("sprintwatch")}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

// Publish sends the event and flushes, so a short-lived process does not
// exit with the message still buffered.
func (p *NATSPublisher) Publish(ctx context.Context, event ReportEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing NATS connection: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
