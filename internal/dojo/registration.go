package dojo

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registration is the handle returned for a running listener. The listener
// runs until Cancel is called, the client is closed, or its source stream
// ends.
type Registration struct {
	ID   uuid.UUID
	Kind string

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// IDGenerator produces registration IDs.
type IDGenerator interface {
	Generate() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 registration IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7. Panics if generation fails.
func (UUIDv7Generator) Generate() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

func newRegistration(id uuid.UUID, kind string, cancel context.CancelFunc) *Registration {
	return &Registration{
		ID:     id,
		Kind:   kind,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel stops the listener. Safe to call more than once.
func (r *Registration) Cancel() {
	r.cancel()
}

// Done is closed once the listener has stopped and will invoke no more
// callbacks.
func (r *Registration) Done() <-chan struct{} {
	return r.done
}

// Err returns why the listener stopped: nil after Cancel, a
// *StreamTerminationError when the source ended first.
func (r *Registration) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Registration) finish(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.cancel()
	close(r.done)
}

// invoke runs cb, turning a panic into a logged error so one bad callback
// does not take the listener down.
func (r *Registration) invoke(cb func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("listener callback panicked", "kind", r.Kind, "registration", r.ID, "panic", p)
			ok = false
		}
	}()
	cb()
	return true
}
