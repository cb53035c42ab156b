package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handler consumes one event
type Handler func(ctx context.Context, ev Event) error

// Bus routes events to the handlers subscribed to their trigger
type Bus interface {
	// Subscribe registers h for trigger and returns a function that removes it.
	Subscribe(trigger string, h Handler) (unsubscribe func())
	Publish(ctx context.Context, ev Event) error
}

// InMemoryBus is the in-process Bus. Every subscribed handler runs even when
// an earlier one fails; the errors are joined.
type InMemoryBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

// NewInMemoryBus constructs an empty bus
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]map[uint64]Handler)}
}

func (b *InMemoryBus) Subscribe(trigger string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.handlers[trigger] == nil {
		b.handlers[trigger] = make(map[uint64]Handler)
	}
	b.handlers[trigger][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[trigger], id)
		})
	}
}

func (b *InMemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[ev.Trigger]))
	for _, h := range b.handlers[ev.Trigger] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if h == nil {
			continue
		}
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish %s: %w", ev.Trigger, errors.Join(errs...))
	}
	return nil
}

// Subscribers reports how many handlers listen to trigger
func (b *InMemoryBus) Subscribers(trigger string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[trigger])
}
