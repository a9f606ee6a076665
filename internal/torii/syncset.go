package torii

import (
	"slices"
	"strings"
	"sync"

	"github.com/MartianGreed/dojo.c/internal/query"
)

// SyncSet is the set of clauses currently kept up to date. All operations
// serialize through one mutex, so it is safe to mutate while listener
// goroutines read it.
type SyncSet struct {
	mu      sync.RWMutex
	clauses map[string]query.KeysClause
}

// NewSyncSet creates an empty set.
func NewSyncSet() *SyncSet {
	return &SyncSet{clauses: make(map[string]query.KeysClause)}
}

// Add inserts c. Returns false if it was already present.
func (s *SyncSet) Add(c query.KeysClause) bool {
	key := c.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clauses[key]; ok {
		return false
	}
	s.clauses[key] = c
	return true
}

// Remove deletes c. Returns false if it was not present.
func (s *SyncSet) Remove(c query.KeysClause) bool {
	key := c.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clauses[key]; !ok {
		return false
	}
	delete(s.clauses, key)
	return true
}

// Contains reports whether c is synced.
func (s *SyncSet) Contains(c query.KeysClause) bool {
	key := c.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.clauses[key]
	return ok
}

// Len returns the number of synced clauses.
func (s *SyncSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clauses)
}

// List returns the synced clauses ordered by model, then rendered keys.
func (s *SyncSet) List() []query.KeysClause {
	s.mu.RLock()
	out := make([]query.KeysClause, 0, len(s.clauses))
	for _, c := range s.clauses {
		out = append(out, c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b query.KeysClause) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}
