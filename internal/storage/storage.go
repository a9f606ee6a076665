// Package storage holds the client's synced model values in memory and
// signals listeners whenever a value under their (model, keys) slot changes.
package storage

import (
	"strings"
	"sync"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

// slot addresses one model value: the model's numeric id plus its key tuple.
type slot struct {
	model felt.Felt
	keys  string
}

func newSlot(model felt.Felt, keys []felt.Felt) slot {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Hex64()
	}
	return slot{model: model, keys: strings.Join(parts, "/")}
}

// Storage is safe for concurrent use. Values are deep-copied on the way in
// and out, so readers always see one consistent snapshot.
type Storage struct {
	mu        sync.RWMutex
	values    map[slot]schema.Ty
	listeners map[slot]map[uint64]*Listener
	nextID    uint64
}

// New creates an empty storage.
func New() *Storage {
	return &Storage{
		values:    make(map[slot]schema.Ty),
		listeners: make(map[slot]map[uint64]*Listener),
	}
}

// Set replaces the value in a slot and signals the slot's listeners.
func (s *Storage) Set(model felt.Felt, keys []felt.Felt, ty schema.Ty) {
	sl := newSlot(model, keys)
	snapshot := schema.Clone(ty)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[sl] = snapshot
	s.notifyLocked(sl)
}

// Get returns a copy of the value in a slot.
func (s *Storage) Get(model felt.Felt, keys []felt.Felt) (schema.Ty, bool) {
	s.mu.RLock()
	ty, ok := s.values[newSlot(model, keys)]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return schema.Clone(ty), true
}

// Delete clears a slot. Listeners are signalled only if a value was present.
func (s *Storage) Delete(model felt.Felt, keys []felt.Felt) {
	sl := newSlot(model, keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[sl]; !ok {
		return
	}
	delete(s.values, sl)
	s.notifyLocked(sl)
}

// Len returns the number of populated slots.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// AddListener registers a change signal for one slot. Each listener is
// independent; several may watch the same slot.
func (s *Storage) AddListener(model felt.Felt, keys []felt.Felt) *Listener {
	sl := newSlot(model, keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	l := &Listener{
		id:      s.nextID,
		slot:    sl,
		storage: s,
		signal:  make(chan struct{}, 1),
	}
	if s.listeners[sl] == nil {
		s.listeners[sl] = make(map[uint64]*Listener)
	}
	s.listeners[sl][l.id] = l
	return l
}

// ListenerCount returns how many listeners watch a slot.
func (s *Storage) ListenerCount(model felt.Felt, keys []felt.Felt) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners[newSlot(model, keys)])
}

// notifyLocked signals every listener of sl. Caller holds s.mu.
func (s *Storage) notifyLocked(sl slot) {
	for _, l := range s.listeners[sl] {
		// Non-blocking - buffer of 1 coalesces bursts of changes
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
}

func (s *Storage) removeListener(l *Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.listeners[l.slot]
	if !ok {
		return
	}
	if _, ok := ls[l.id]; !ok {
		return
	}
	delete(ls, l.id)
	if len(ls) == 0 {
		delete(s.listeners, l.slot)
	}
	close(l.signal)
}

// Listener receives a signal after one or more changes to its slot.
// Signals carry no data: read the slot with Get after receiving one.
type Listener struct {
	id      uint64
	slot    slot
	storage *Storage
	signal  chan struct{} // buffered, size 1
}

// C returns the signal channel. It is closed by Close.
func (l *Listener) C() <-chan struct{} {
	return l.signal
}

// Close unregisters the listener and closes its channel. Safe to call more
// than once.
func (l *Listener) Close() {
	l.storage.removeListener(l)
}
