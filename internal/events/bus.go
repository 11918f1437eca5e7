package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Delivery is asynchronous.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceDiscoveryEvent:
		event.Publish(b.dispatcher, e)
	case OperationStateEvent:
		event.Publish(b.dispatcher, e)
	case OperationCompletedEvent:
		event.Publish(b.dispatcher, e)
	case ReportWrittenEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e DeviceDiscoveryEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceDiscoveryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(OperationStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(OperationCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ReportWrittenEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
