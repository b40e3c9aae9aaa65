package event

import (
	"reflect"
	"sync"
)

// Bus is a single ordered queue of host notifications. Events are delivered
// in emission order across all event types; a handler that emits lands its
// event at the end of the current drain, so nothing is reordered or batched.
//
// Emit may be called from any goroutine. DispatchAll runs on the game loop.
type Bus struct {
	mu       sync.Mutex
	queue    []queued
	handlers map[reflect.Type][]func(any)
}

type queued struct {
	typ   reflect.Type
	event any
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]func(any)),
	}
}

// Emit appends an event to the queue.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	b.queue = append(b.queue, queued{typ: t, event: event})
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
// Handlers for the same type run in subscription order.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Pending returns the number of queued events.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// DispatchAll drains the queue, delivering each event to its handlers,
// until the queue is empty. Returns the number of events delivered.
func (b *Bus) DispatchAll() int {
	n := 0
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return n
		}
		next := b.queue[0]
		b.queue[0] = queued{}
		b.queue = b.queue[1:]
		handlers := b.handlers[next.typ]
		b.mu.Unlock()

		for _, h := range handlers {
			h(next.event)
		}
		n++
	}
}
