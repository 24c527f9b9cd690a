// internal/events/handler.go
package events

import (
	"context"
)

// Handler processes events of a specific type.
type Handler interface {
	// Handle processes an event. Should not block.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}

// Recorder collects events synchronously; handy as a Publisher in tests and
// in the scenario runner.
type Recorder struct {
	events []Event
}

// Publish appends the event.
func (r *Recorder) Publish(event Event) error {
	r.events = append(r.events, event)
	return nil
}

// Events returns everything published so far.
func (r *Recorder) Events() []Event { return r.events }
