package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/zkbalancer/pkg/config"
)

// Sink ships encoded event documents to an external system
type Sink interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// NewSink creates a Sink based on configuration.
// An empty or "none" sink type yields a NoopSink.
func NewSink(cfg config.EventsConfig) (Sink, error) {
	switch strings.ToLower(cfg.Sink) {
	case "", config.SinkNone:
		return NoopSink{}, nil
	case config.SinkNATS:
		return newNATSSink(cfg.URL, cfg.Subject)
	case config.SinkKafka:
		return newKafkaSink(cfg.Brokers, cfg.Subject)
	case config.SinkRedis:
		return newRedisSink(cfg.URL, cfg.Subject)
	default:
		return nil, fmt.Errorf("unsupported event sink: %s (supported: nats, kafka, redis, none)", cfg.Sink)
	}
}

// NoopSink discards everything
type NoopSink struct{}

func (NoopSink) Send(ctx context.Context, data []byte) error { return nil }
func (NoopSink) Close() error                                { return nil }
