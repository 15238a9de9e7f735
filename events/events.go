package events

import "sync"

// EventHandler defines a function type where its input type is the generic type.
type EventHandler[T any] func(T)

// EventEmitter describes a provider which can subscribe EventHandler methods for callback when the event type (generic)
// is published. It additionally provides methods for publishing events. The zero value is ready to use.
type EventEmitter[T any] struct {
	lock sync.RWMutex

	// subscriptions defines the EventHandler methods which should be invoked when a new event is published to this
	// emitter.
	subscriptions []EventHandler[T]
}

// Publish emits the provided event by calling every EventHandler subscribed to this emitter, in subscription order.
func (e *EventEmitter[T]) Publish(event T) {
	e.lock.RLock()
	subscriptions := e.subscriptions
	e.lock.RUnlock()
	for _, subscription := range subscriptions {
		subscription(event)
	}
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler objects for this emitter. When an event is
// published, the callback will be triggered with the event data.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.subscriptions = append(e.subscriptions, callback)
}
