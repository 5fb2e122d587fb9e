package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus wraps the underlying event bus. Each orchestrator owns its own
// instance; there is no process-wide singleton.
type Bus struct {
	bus evbus.Bus
}

// New creates an event bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish emits an event on the given topic.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers a handler for the given topic.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler invoked on its own goroutine.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// Unsubscribe removes a handler from the given topic.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// WaitAsync blocks until all async handlers have completed.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
