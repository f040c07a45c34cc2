package events

import (
	"context"
	"sync"

	"github.com/rfmesh/meshmap/pkg/device"
)

// subscriberBuffer is the per-subscription channel depth. A slow consumer
// drops messages rather than stalling the publisher.
const subscriberBuffer = 100

// Bus is the in-process publish/subscribe fabric for event envelopes. It
// implements Dispatcher so the pipeline can publish through it directly.
type Bus struct {
	subscribers map[string]map[*Subscription]bool
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// Subscription represents a subscription to a topic
type Subscription struct {
	topic     string
	channel   chan Envelope
	bus       *Bus
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once // Ensures channel is only closed once
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]map[*Subscription]bool),
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a new subscription to a topic. Returns nil after the
// bus has shut down.
func (b *Bus) Subscribe(ctx context.Context, topic string) *Subscription {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return nil
	}
	b.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan Envelope, subscriberBuffer),
		bus:     b,
		ctx:     subCtx,
		cancel:  cancel,
	}

	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[*Subscription]bool)
	}
	b.subscribers[topic][sub] = true
	b.mu.Unlock()

	// Monitor context cancellation
	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-b.shutdown:
			sub.close()
		}
	}()

	return sub
}

// Publish wraps the payload in an envelope and sends it to every subscriber
// of the topic. Subscribers are copied out under the lock first so a slow
// channel send never blocks map mutation.
func (b *Bus) Publish(topic string, payload any) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.shutdownMu.Unlock()

	b.mu.RLock()
	topicSubs := b.subscribers[topic]
	if len(topicSubs) == 0 {
		b.mu.RUnlock()
		return
	}
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	env := newEnvelope(topic, payload)
	for _, sub := range subs {
		select {
		case sub.channel <- env:
		default:
			// Channel full, drop for this subscriber
		}
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// TotalSubscribers returns the number of subscriptions across all topics.
func (b *Bus) TotalSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	return total
}

// IsShutdown reports whether Shutdown has been called.
func (b *Bus) IsShutdown() bool {
	b.shutdownMu.Lock()
	defer b.shutdownMu.Unlock()
	return b.isShutdown
}

// Shutdown closes all subscriptions and stops the bus.
func (b *Bus) Shutdown() {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.isShutdown = true
	b.shutdownMu.Unlock()

	close(b.shutdown)

	b.mu.Lock()
	for topic := range b.subscribers {
		for sub := range b.subscribers[topic] {
			sub.close()
		}
		delete(b.subscribers, topic)
	}
	b.mu.Unlock()
}

// Dispatcher implementation. Bus publishes never fail; the error returns
// satisfy the contract shared with fallible sinks.

func (b *Bus) DeviceUpdated(snapshot device.Snapshot) error {
	b.Publish(TopicDeviceUpdated, snapshot)
	return nil
}

func (b *Bus) GraphUpdated(snapshot GraphSnapshot) error {
	b.Publish(TopicGraphUpdated, snapshot)
	return nil
}

func (b *Bus) ConfigurationStatus(status ConfigurationStatus) error {
	b.Publish(TopicConfiguration, status)
	return nil
}

func (b *Bus) Notify(n device.Notification) error {
	b.Publish(TopicNotification, n)
	return nil
}

// Channel returns the subscription's envelope channel.
func (s *Subscription) Channel() <-chan Envelope {
	return s.channel
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.bus.subscribers[s.topic] != nil {
		delete(s.bus.subscribers[s.topic], s)
		if len(s.bus.subscribers[s.topic]) == 0 {
			delete(s.bus.subscribers, s.topic)
		}
	}

	s.close()
}

// close closes the subscription channel safely (idempotent)
func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
