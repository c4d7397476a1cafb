package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/rs/zerolog"
)

// Forwarder subscribes to the broker and ships each event to a Sink.
// Sink failures are logged at debug level and otherwise ignored.
type Forwarder struct {
	broker  *Broker
	sink    Sink
	timeout time.Duration
	logger  zerolog.Logger

	sub    *Subscription
	doneCh chan struct{}
	once   sync.Once
}

// NewForwarder creates a forwarder; each send is bounded by timeout
func NewForwarder(broker *Broker, sink Sink, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Forwarder{
		broker:  broker,
		sink:    sink,
		timeout: timeout,
		logger:  log.WithComponent("forwarder"),
		doneCh:  make(chan struct{}),
	}
}

// Start subscribes and begins forwarding in the background
func (f *Forwarder) Start() {
	f.sub = f.broker.Subscribe("forwarder", 256)
	go f.run()
}

// Stop unsubscribes, waits for in-flight sends and closes the sink
func (f *Forwarder) Stop() {
	f.once.Do(func() {
		if f.sub != nil {
			f.broker.Unsubscribe(f.sub)
			<-f.doneCh
		}
		if err := f.sink.Close(); err != nil {
			f.logger.Debug().Err(err).Msg("Failed to close event sink")
		}
	})
}

func (f *Forwarder) run() {
	defer close(f.doneCh)
	for event := range f.sub.C {
		f.forward(event)
	}
}

func (f *Forwarder) forward(event *Event) {
	data, err := json.Marshal(Document(event))
	if err != nil {
		f.logger.Debug().Err(err).Str("event_id", event.ID).Msg("Failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.sink.Send(ctx, data); err != nil {
		f.logger.Debug().Err(err).Str("event_type", string(event.Type)).Msg("Failed to forward event")
	}
}

// Document renders an event as the JSON document shipped to sinks.
// Operations carry the full audit row under service "operations".
func Document(event *Event) map[string]any {
	if a := event.Audit; a != nil {
		message := a.Details
		if message == "" {
			message = a.Action
		}
		return map[string]any{
			"@timestamp":     a.Timestamp,
			"actor":          a.Actor,
			"action":         a.Action,
			"node":           a.Node,
			"status":         a.Status,
			"details":        a.Details,
			"message":        message,
			"before_metrics": a.BeforeMetrics,
			"after_metrics":  a.AfterMetrics,
			"service":        map[string]string{"name": "operations"},
		}
	}

	return map[string]any{
		"@timestamp": event.Timestamp,
		"event":      string(event.Type),
		"message":    event.Message,
		"metadata":   event.Metadata,
		"service":    map[string]string{"name": "cluster"},
	}
}
