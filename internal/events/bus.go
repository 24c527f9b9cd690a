// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Publish after Shutdown.
var ErrBusClosed = errors.New("event bus is shutting down")

// ErrQueueFull is returned when Publish finds no room in the queue.
var ErrQueueFull = errors.New("event queue full")

type entry struct {
	id      string
	handler Handler
}

// Bus delivers engine events to subscribers. Publish queues and returns; a
// single dispatcher delivers queued events in publish order, and handlers of
// one type run in subscription order. PublishSync delivers on the caller's
// goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]entry
	logger   *zap.Logger

	queue     chan Event
	closed    bool // guarded by mu; no send follows it
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Stats is a point-in-time view of the bus.
type Stats struct {
	Capacity  int            `json:"capacity"`
	Pending   int            `json:"pending"`
	Published uint64         `json:"published"`
	Delivered uint64         `json:"delivered"`
	Failed    uint64         `json:"failed"`
	Dropped   uint64         `json:"dropped"`
	Handlers  map[string]int `json:"handlers"`
}

// NewBus creates a bus with a queue of bufferSize events and starts its
// dispatcher.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		handlers: make(map[EventType][]entry),
		logger:   logger.Named("event_bus"),
		queue:    make(chan Event, bufferSize),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.New().String()

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], entry{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, bus: b, typ: eventType}
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues an event. A full queue drops it: engine state never depends
// on delivery.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	select {
	case b.queue <- event:
		b.published.Add(1)
		b.mu.RUnlock()
		return nil
	default:
	}
	b.mu.RUnlock()

	b.dropped.Add(1)
	b.logger.Warn("Event queue full, dropping event",
		zap.String("event_type", string(event.Type())))
	return ErrQueueFull
}

// PublishSync runs every handler of the event's type and joins their errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := append([]entry(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.handler.Handle(ctx, event); err != nil {
			b.failed.Add(1)
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("subscription_id", sub.id),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		b.delivered.Add(1)
	}
	return errors.Join(errs...)
}

// dispatch delivers queued events until Shutdown, then drains the queue.
// Storage has to see an economy before its trades, hence one goroutine.
func (b *Bus) dispatch() {
	defer close(b.done)

	for {
		select {
		case event := <-b.queue:
			_ = b.PublishSync(context.Background(), event)
		case <-b.closing:
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = subs
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops accepting events and waits for the queue to drain.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.logger.Info("Shutting down event bus", zap.Int("pending", len(b.queue)))
		close(b.closing)
	})

	select {
	case <-b.done:
		b.logger.Info("Event bus drained",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending", len(b.queue)))
		return ctx.Err()
	}
}

// Stats returns counters and subscriber counts per event type.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	handlers := make(map[string]int, len(b.handlers))
	for eventType, subs := range b.handlers {
		handlers[string(eventType)] = len(subs)
	}
	b.mu.RUnlock()

	return Stats{
		Capacity:  cap(b.queue),
		Pending:   len(b.queue),
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
		Dropped:   b.dropped.Load(),
		Handlers:  handlers,
	}
}
