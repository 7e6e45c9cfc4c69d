package worker

import (
	"context"
	"sync"
)

// InMemoryBus simulates the event log by routing published payloads
// directly to the handlers subscribed to the topic, synchronously and in
// order. It lets the two services be wired end to end in tests without a
// broker.
type InMemoryBus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// NewInMemoryBus creates an empty in-memory topic bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic. Each handler models an
// independent consumer group: every one of them receives every payload.
func (b *InMemoryBus) Subscribe(topic string, handle Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handle)
}

// Publish implements the Publisher interface. The first handler error is
// returned, mirroring a delivery whose offset would stay uncommitted.
func (b *InMemoryBus) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, handle := range handlers {
		if err := handle(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}
