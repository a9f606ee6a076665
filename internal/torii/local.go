package torii

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/store"
)

// DefaultPollInterval is how often LocalBackend checks the indexer for
// new updates.
const DefaultPollInterval = 250 * time.Millisecond

// LocalBackend serves queries from a SQLite indexer and derives the update
// feed by polling its update sequence.
type LocalBackend struct {
	store    *store.Store
	interval time.Duration
}

// LocalOption allows configuration of LocalBackend parameters.
type LocalOption func(*LocalBackend)

// WithPollInterval sets the feed polling interval.
func WithPollInterval(d time.Duration) LocalOption {
	return func(b *LocalBackend) {
		if d > 0 {
			b.interval = d
		}
	}
}

// NewLocalBackend wraps an open store.
func NewLocalBackend(s *store.Store, opts ...LocalOption) *LocalBackend {
	b := &LocalBackend{store: s, interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Entities implements Backend.
func (b *LocalBackend) Entities(ctx context.Context, q query.Query) ([]schema.Entity, error) {
	return b.store.Entities(ctx, q)
}

// Model implements Backend.
func (b *LocalBackend) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	return b.store.Model(ctx, clause)
}

// Subscribe implements Backend. The feed starts after the store's current
// latest update; earlier writes are not replayed.
func (b *LocalBackend) Subscribe(ctx context.Context, ids []felt.Felt) (<-chan Update, error) {
	seq, err := b.store.LatestSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	ids = slices.Clone(ids)
	out := make(chan Update, 64)
	go b.poll(ctx, seq, ids, out)
	return out, nil
}

func (b *LocalBackend) poll(ctx context.Context, seq int64, ids []felt.Felt, out chan<- Update) {
	defer close(out)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		updates, err := b.store.EntitiesSince(ctx, seq, ids)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient read failures are retried on the next tick.
			slog.Warn("update poll failed", "after_seq", seq, "error", err)
			continue
		}

		for _, u := range updates {
			if !send(ctx, out, Update{Entity: u.Entity}) {
				return
			}
			seq = u.Seq
		}
	}
}
