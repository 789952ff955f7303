// Package event is the in-process publish/subscribe fabric. Session
// lifecycle and phase progression are announced here so observers
// (logging, metrics, future webhooks) stay decoupled from the manager.
package event

import (
	"context"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Event is the marker interface all published event types implement,
// giving Subscribe and Publish compile-time type safety.
type Event[T any] interface {
	Event()
}

// Handler receives events of type T. Handlers run asynchronously on the
// bus workers and must not block for long.
type Handler[T any] func(context.Context, T)

type Bus struct {
	ctx         context.Context
	cancel      context.CancelFunc
	subscribers map[reflect.Type][]subscriber
	mu          sync.RWMutex
	wg          sync.WaitGroup
	closed      atomic.Bool

	queue chan delivery

	metrics *busMetrics
}

type delivery struct {
	event     any
	eventType string
	invoke    func(context.Context, any)
}

type subscriber struct {
	id     uuid.UUID
	invoke func(context.Context, any)
}

type Subscription struct {
	bus       *Bus
	eventType reflect.Type
	id        uuid.UUID
	once      sync.Once
}

const (
	busWorkers   = 4
	busQueueSize = 256
)

// NewBus starts the delivery workers. Pass a nil registry to run without
// metrics.
func NewBus(registry *prometheus.Registry) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[reflect.Type][]subscriber),
		queue:       make(chan delivery, busQueueSize),
		metrics:     newBusMetrics(registry),
	}

	for range busWorkers {
		bus.wg.Add(1)
		go bus.worker()
	}
	return bus
}

func (bus *Bus) worker() {
	defer bus.wg.Done()
	for {
		select {
		case <-bus.ctx.Done():
			return
		case d := <-bus.queue:
			bus.deliver(d)
		}
	}
}

// deliver invokes one handler, containing panics so a misbehaving
// observer cannot take down the daemon.
func (bus *Bus) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in event handler",
				slog.Any("error", r),
				slog.String("event_type", d.eventType),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	d.invoke(bus.ctx, d.event)
	bus.metrics.delivered(d.eventType)
}

// Subscribe registers a handler for events of type T. The returned
// Subscription unsubscribes; it is safe to call Unsubscribe repeatedly.
func Subscribe[T Event[T]](bus *Bus, handler Handler[T]) *Subscription {
	if bus.closed.Load() {
		slog.Warn("subscribe on closed event bus")
		return &Subscription{bus: bus}
	}

	var zero T
	eventType := reflect.TypeOf(zero)

	id := uuid.New()
	sub := subscriber{
		id: id,
		invoke: func(ctx context.Context, event any) {
			if typed, ok := event.(T); ok {
				handler(ctx, typed)
			}
		},
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers[eventType] = append(bus.subscribers[eventType], sub)

	return &Subscription{bus: bus, eventType: eventType, id: id}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		subs := s.bus.subscribers[s.eventType]
		for i, sub := range subs {
			if sub.id == s.id {
				s.bus.subscribers[s.eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	})
}

// Publish enqueues the event for every subscriber of its type. Delivery
// is asynchronous; when the queue is full the event is dropped rather
// than blocking the conversation pipeline.
func Publish[T Event[T]](bus *Bus, event T) {
	if bus.closed.Load() {
		return
	}

	eventType := reflect.TypeOf(event)
	name := eventType.String()

	bus.mu.RLock()
	subs := make([]subscriber, len(bus.subscribers[eventType]))
	copy(subs, bus.subscribers[eventType])
	bus.mu.RUnlock()

	for _, sub := range subs {
		select {
		case bus.queue <- delivery{event: event, eventType: name, invoke: sub.invoke}:
		case <-bus.ctx.Done():
			return
		default:
			bus.metrics.dropped(name)
			slog.Debug("dropped event, queue full", slog.String("event_type", name))
		}
	}

	bus.metrics.published(name)
}

// Close stops the workers and waits for in-flight deliveries. Safe to
// call more than once.
func (bus *Bus) Close() {
	if !bus.closed.CompareAndSwap(false, true) {
		return
	}
	bus.cancel()
	bus.wg.Wait()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	clear(bus.subscribers)
}

// SubscriberCount reports the subscribers registered for T. Primarily
// for tests.
func SubscriberCount[T Event[T]](bus *Bus) int {
	var zero T
	eventType := reflect.TypeOf(zero)

	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subscribers[eventType])
}
