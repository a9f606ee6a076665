package testutil

import (
	"sync"

	"github.com/google/uuid"
)

// FixedIDGenerator returns predetermined registration IDs in order.
//
// Tests use it to assert on registration IDs in logs and output without
// depending on the clock.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []uuid.UUID
	idx int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
// Panics if any id is not a valid UUID.
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	g := &FixedIDGenerator{ids: make([]uuid.UUID, len(ids))}
	for i, id := range ids {
		g.ids[i] = uuid.MustParse(id)
	}
	return g
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed, which means the test registered
// more listeners than it expected.
func (g *FixedIDGenerator) Generate() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
