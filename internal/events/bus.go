package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for in-process broadcasting.
// Workers publish completion and progress events here instead of blocking
// their callers; interactive surfaces subscribe.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// kelindar/event dispatches on the concrete type, so each known event type
// needs its own case.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceStateEvent:
		event.Publish(b.dispatcher, e)
	case ProcessStateEvent:
		event.Publish(b.dispatcher, e)
	case StreamStateEvent:
		event.Publish(b.dispatcher, e)
	case DownloadProgressEvent:
		event.Publish(b.dispatcher, e)
	case SynthesisProgressEvent:
		event.Publish(b.dispatcher, e)
	case PreferencesChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes a typed handler to events of that type.
// Returns an unsubscribe function, or nil for unknown handler types.
// Usage: unsub := bus.Subscribe(func(e DeviceStateEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DownloadProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SynthesisProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PreferencesChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return nil
	}
}

// Close shuts down the dispatcher.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
