// Package realtime fans row-change events out to per-user subscriptions and
// turns them into client refreshes.
package realtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/metrics"
)

// EventType is the kind of row change carried by an Event.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"

	// Join and Leave are published on PresenceTable when subscriptions open and close.
	Join  EventType = "join"
	Leave EventType = "leave"
)

// PresenceTable is the pseudo-table carrying subscription diagnostics.
const PresenceTable = "presence"

const defaultBuffer = 16

// Event is a change to one row. Columns holds the values subscriptions may
// filter on; Record is the row itself.
type Event struct {
	Table   string
	Type    EventType
	Columns map[string]string
	Record  any
	At      time.Time
}

// Filter selects events. Empty fields match anything.
type Filter struct {
	Table  string
	Type   EventType
	Column string
	Value  string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Type != "" && f.Type != e.Type {
		return false
	}
	if f.Column != "" {
		v, ok := e.Columns[f.Column]
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

// Publisher is what services need to announce changes.
type Publisher interface {
	Publish(e Event)
}

// Subscription receives events matching any of its filters on C until
// Unsubscribe is called, after which C is closed.
type Subscription struct {
	Channel string
	C       <-chan Event

	ch      chan Event
	filters []Filter
	broker  *Broker
	once    sync.Once
}

func (s *Subscription) matches(e Event) bool {
	for _, f := range s.filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}

// Unsubscribe detaches the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.broker.remove(s) })
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscription channel capacity.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithMetrics reports subscriber counts and drops to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Broker) { b.metrics = c }
}

// Broker is an in-process change feed. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Broker struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	channels map[string]int
	buffer   int
	metrics  *metrics.Collector
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subs:     make(map[*Subscription]struct{}),
		channels: make(map[string]int),
		buffer:   defaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ChannelName builds a per-mount channel name so that two subscriptions for the
// same user never share a name.
func ChannelName(topic, userID string) string {
	return fmt.Sprintf("%s:%s:%s", topic, userID, uuid.New().String()[:8])
}

// Subscribe opens a subscription named channel that receives events matching
// any of filters.
func (b *Broker) Subscribe(channel string, filters ...Filter) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{
		Channel: channel,
		C:       ch,
		ch:      ch,
		filters: filters,
		broker:  b,
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.channels[channel]++
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RealtimeSubscribers.Inc()
	}
	slog.Debug("Realtime subscription opened", "channel", channel, "filters", len(filters))
	b.Publish(presenceEvent(Join, channel))
	return s
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, s)
	if b.channels[s.Channel]--; b.channels[s.Channel] <= 0 {
		delete(b.channels, s.Channel)
	}
	close(s.ch)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RealtimeSubscribers.Dec()
	}
	slog.Debug("Realtime subscription closed", "channel", s.Channel)
	b.Publish(presenceEvent(Leave, s.Channel))
}

// Publish delivers e to every matching subscription.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !s.matches(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			if b.metrics != nil {
				b.metrics.RealtimeDropped.Inc()
			}
			slog.Warn("Realtime subscriber lagging, event dropped", "channel", s.Channel, "table", e.Table, "type", e.Type)
		}
	}
}

// Presence returns how many open subscriptions use the channel name.
func (b *Broker) Presence(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channels[channel]
}

// Close unsubscribes everyone.
func (b *Broker) Close() {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func presenceEvent(t EventType, channel string) Event {
	return Event{
		Table:   PresenceTable,
		Type:    t,
		Columns: map[string]string{"channel": channel},
	}
}
