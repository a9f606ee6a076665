package torii

import (
	"context"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

// Backend is the indexer the client fetches from and subscribes to.
//
// Implementations:
//   - LocalBackend: SQLite indexer with a polling change feed
//   - WSBackend: websocket change feed, fetches delegated to another backend
type Backend interface {
	// Entities runs a paginated entity query.
	Entities(ctx context.Context, q query.Query) ([]schema.Entity, error)

	// Model returns one model value by exact key tuple, or nil if absent.
	Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error)

	// Subscribe streams entity updates, restricted to ids when non-empty.
	// The channel is closed when ctx is cancelled or the feed ends.
	Subscribe(ctx context.Context, ids []felt.Felt) (<-chan Update, error)
}

// Update is one item of an entity update stream. Err is set for an item the
// backend received but could not decode; the stream keeps going after it.
type Update struct {
	Entity schema.Entity
	Err    error
}

// matchesIDs reports whether id passes an optional identity filter.
func matchesIDs(ids []felt.Felt, id felt.Felt) bool {
	if len(ids) == 0 {
		return true
	}
	for _, want := range ids {
		if want == id {
			return true
		}
	}
	return false
}

// send delivers u unless ctx is done first.
func send(ctx context.Context, ch chan<- Update, u Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
