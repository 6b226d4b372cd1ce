package event

import (
	"reflect"
	"sync"
)

type queued struct {
	typ reflect.Type
	ev  any
}

// Bus is a double-buffered notification bus. Events emitted during tick N
// are delivered in emission order during tick N+1, after SwapBuffers.
// Behavior signals do not travel through here; they are synchronous.
type Bus struct {
	mu       sync.Mutex // protects handler registration and the back buffer
	front    []queued
	back     []queued
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make([]queued, 0, 64),
		back:     make([]queued, 0, 64),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer. A nil bus drops the event.
func Emit[T any](b *Bus, event T) {
	if b == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	b.back = append(b.back, queued{typ: t, ev: event})
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back to front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	b.front, b.back = b.back, b.front[:0]
	b.mu.Unlock()
}

// Pending returns the number of events waiting in the back buffer.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.back)
}

// DispatchAll delivers every front-buffer event to its handlers in emission
// order and returns the number of events delivered.
func (b *Bus) DispatchAll() int {
	b.mu.Lock()
	events := b.front
	b.mu.Unlock()
	for _, q := range events {
		b.mu.Lock()
		handlers := b.handlers[q.typ]
		b.mu.Unlock()
		for _, h := range handlers {
			callHandler(h, q.ev)
		}
	}
	return len(events)
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}
