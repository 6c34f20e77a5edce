package acthor

import (
	"log/slog"
	"sync"
)

// Event names emitted by the core.
const (
	// EventConnected fires after the transport re-established a dropped
	// session.
	EventConnected = "connected"
	// EventAfterUpdate fires after a fast control cycle completed.
	EventAfterUpdate = "after_update"
	// EventAfterWritePower fires after a new setpoint was written. The
	// single argument is the written wattage as an int.
	EventAfterWritePower = "after_write_power"
)

// Handler receives event arguments. A panicking handler is recovered,
// logged, and never affects other handlers or the emitter.
type Handler func(args ...any)

type listenerEntry struct {
	id uint64
	fn Handler
}

// Events is a minimal per-object publish/subscribe facility.
// The zero value is not usable; use newEvents.
type Events struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]listenerEntry
	logger    *slog.Logger
}

func newEvents(logger *slog.Logger) *Events {
	return &Events{
		listeners: make(map[string][]listenerEntry),
		logger:    logger,
	}
}

// Subscribe registers a handler for an event name. The returned closure
// deregisters exactly that handler and reports whether it was still
// registered.
func (e *Events) Subscribe(name string, fn Handler) (unsubscribe func() bool) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[name] = append(e.listeners[name], listenerEntry{id: id, fn: fn})
	e.mu.Unlock()

	return func() bool {
		return e.unsubscribe(name, id)
	}
}

func (e *Events) unsubscribe(name string, id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.listeners[name]
	for i, ent := range entries {
		if ent.id == id {
			e.listeners[name] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Emit dispatches an event to all currently registered handlers. Handlers
// run concurrently and isolated: one slow or panicking handler does not
// block or abort the others, and nothing propagates to the emitter.
//
// Emit returns without waiting. The returned channel closes once every
// handler has finished, so tests can wait for propagation.
func (e *Events) Emit(name string, args ...any) <-chan struct{} {
	e.mu.Lock()
	entries := append([]listenerEntry(nil), e.listeners[name]...)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, ent := range entries {
			wg.Add(1)
			go func(ent listenerEntry) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil && e.logger != nil {
						e.logger.Error("event handler panicked",
							"event", name, "handler", ent.id, "args", args, "panic", r)
					}
				}()
				ent.fn(args...)
			}(ent)
		}
		wg.Wait()
	}()
	return done
}
