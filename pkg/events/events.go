package events

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/google/uuid"
)

// EventType names what happened
type EventType string

const (
	EventOperationRecorded EventType = "operation.recorded"
	EventNodeDown          EventType = "node.down"
	EventNodeUp            EventType = "node.up"
)

// Event is one notification flowing through the broker
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string

	// Audit is set for EventOperationRecorded
	Audit *types.AuditEntry
}

// Subscription is a named consumer of broker events. C is closed on
// Unsubscribe.
type Subscription struct {
	Name    string
	C       <-chan *Event
	ch      chan *Event
	dropped atomic.Int64
}

// Dropped returns how many events this subscription missed because its
// buffer was full
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Broker fans events out to subscriptions without ever blocking publishers
type Broker struct {
	queue chan *Event
	done  chan struct{}
	halt  sync.Once

	mu   sync.RWMutex
	subs map[string]*Subscription

	dropped atomic.Int64
}

// NewBroker creates a broker whose queue holds up to buffer pending events
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 100
	}
	return &Broker{
		queue: make(chan *Event, buffer),
		done:  make(chan struct{}),
		subs:  make(map[string]*Subscription),
	}
}

// Start launches the dispatch goroutine
func (b *Broker) Start() {
	go b.dispatch()
}

// Stop ends dispatch. Later publishes are counted as dropped.
func (b *Broker) Stop() {
	b.halt.Do(func() { close(b.done) })
}

// Subscribe registers a consumer under name with its own buffer. An
// existing subscription with the same name is replaced and closed.
func (b *Broker) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 50
	}
	ch := make(chan *Event, buffer)
	sub := &Subscription{Name: name, C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[name]; ok {
		close(old.ch)
	}
	b.subs[name] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Unknown or already
// removed subscriptions are ignored.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.subs[sub.Name]; ok && cur == sub {
		delete(b.subs, sub.Name)
		close(sub.ch)
	}
}

// Subscriptions returns the names of the active subscriptions, sorted
func (b *Broker) Subscriptions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish stamps the event and queues it. It never blocks: a full queue or
// a stopped broker drops the event.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case <-b.done:
		b.dropped.Add(1)
		return
	default:
	}

	select {
	case b.queue <- event:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events never reached the dispatch queue
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Broker) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case event := <-b.queue:
			b.deliver(event)
		}
	}
}

func (b *Broker) deliver(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
		}
	}
}
