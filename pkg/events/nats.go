package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes documents on a core NATS subject
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func newNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("zkbalancer"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

// Send publishes data. Delivery is fire-and-forget.
func (s *NATSSink) Send(ctx context.Context, data []byte) error {
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", s.subject, err)
	}
	return nil
}

// Close drains and closes the connection
func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
