package torii

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/storage"
)

// DefaultFetchConcurrency bounds parallel initial fetches in AddModelsToSync.
const DefaultFetchConcurrency = 8

// Config configures a Client.
type Config struct {
	Backend      Backend
	WorldAddress felt.Felt
}

// Client is the world client: one-shot queries, the synced model set and
// its in-memory storage, and the update feed that keeps that storage fresh.
//
// Thread-safety: all methods are safe for concurrent use. mu orders sync
// set changes against feed writes, so a slot is written only while its
// clause is synced.
type Client struct {
	backend      Backend
	worldAddress felt.Felt
	storage      *storage.Storage
	synced       *SyncSet
	concurrency  int

	mu       sync.Mutex
	fetching map[string][]*fetch
}

// fetch is one in-flight initial fetch. latest holds the newest feed value
// for the clause that arrived while the fetch ran.
type fetch struct {
	clause  query.KeysClause
	modelID felt.Felt
	value   schema.Ty
	latest  schema.Ty
}

// ClientOption allows configuration of client parameters.
type ClientOption func(*Client)

// WithFetchConcurrency sets how many initial model fetches run at once.
func WithFetchConcurrency(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithStorage shares an existing storage instead of creating one.
func WithStorage(s *storage.Storage) ClientOption {
	return func(c *Client) {
		c.storage = s
	}
}

// New creates a client. The synced set starts empty.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.Backend == nil {
		return nil, errors.New("torii client: backend is required")
	}

	c := &Client{
		backend:      cfg.Backend,
		worldAddress: cfg.WorldAddress,
		synced:       NewSyncSet(),
		concurrency:  DefaultFetchConcurrency,
		fetching:     make(map[string][]*fetch),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage == nil {
		c.storage = storage.New()
	}
	return c, nil
}

// WorldAddress returns the world contract address the client was built for.
func (c *Client) WorldAddress() felt.Felt {
	return c.worldAddress
}

// Storage returns the synced model storage.
func (c *Client) Storage() *storage.Storage {
	return c.storage
}

// SyncedModels returns the clauses currently kept up to date.
func (c *Client) SyncedModels() []query.KeysClause {
	return c.synced.List()
}

// Entities runs a one-shot query against the backend.
func (c *Client) Entities(ctx context.Context, q query.Query) ([]schema.Entity, error) {
	return c.backend.Entities(ctx, q)
}

// Model returns one model value. Synced clauses are served from storage;
// anything else is fetched. A missing value is (nil, nil).
func (c *Client) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	if ty, ok, err := c.syncedValue(clause); err != nil || ok {
		return ty, err
	}
	return c.backend.Model(ctx, clause)
}

func (c *Client) syncedValue(clause query.KeysClause) (schema.Ty, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.synced.Contains(clause) {
		return nil, false, nil
	}
	modelID, err := clause.ModelID()
	if err != nil {
		return nil, false, err
	}
	ty, ok := c.storage.Get(modelID, clause.Keys)
	return ty, ok, nil
}

// AddModelsToSync starts syncing clauses. Clauses already synced are
// skipped. The initial values of the new clauses are fetched concurrently;
// if any fetch fails nothing is added. A feed update that arrives while a
// fetch runs wins over the fetched value.
func (c *Client) AddModelsToSync(ctx context.Context, clauses []query.KeysClause) error {
	seen := make(map[string]bool)
	var todo []*fetch
	for _, clause := range clauses {
		key := clause.Key()
		if seen[key] || c.synced.Contains(clause) {
			continue
		}
		seen[key] = true

		modelID, err := clause.ModelID()
		if err != nil {
			return fmt.Errorf("model %q: %w", clause.Model, err)
		}
		todo = append(todo, &fetch{clause: clause, modelID: modelID})
	}
	if len(todo) == 0 {
		return nil
	}

	c.track(todo)
	defer c.untrack(todo)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, f := range todo {
		f := f
		g.Go(func() error {
			ty, err := c.backend.Model(gCtx, f.clause)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", f.clause, err)
			}
			f.value = ty
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range todo {
		if !c.synced.Add(f.clause) {
			continue
		}
		value := f.value
		if f.latest != nil {
			value = f.latest
		}
		if value != nil {
			c.storage.Set(f.modelID, f.clause.Keys, value)
		}
		slog.Debug("model synced", "clause", f.clause.String(), "present", value != nil)
	}
	return nil
}

// track registers in-flight fetches so apply can hand them newer values.
func (c *Client) track(fs []*fetch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fs {
		key := f.clause.Key()
		c.fetching[key] = append(c.fetching[key], f)
	}
}

func (c *Client) untrack(fs []*fetch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fs {
		key := f.clause.Key()
		rest := slices.DeleteFunc(c.fetching[key], func(o *fetch) bool { return o == f })
		if len(rest) == 0 {
			delete(c.fetching, key)
		} else {
			c.fetching[key] = rest
		}
	}
}

// RemoveModelsToSync stops syncing clauses and drops their stored values.
// Clauses that are not synced are ignored.
func (c *Client) RemoveModelsToSync(ctx context.Context, clauses []query.KeysClause) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, clause := range clauses {
		if !c.synced.Remove(clause) {
			continue
		}
		if modelID, err := clause.ModelID(); err == nil {
			c.storage.Delete(modelID, clause.Keys)
		}
		slog.Debug("model unsynced", "clause", clause.String())
	}
	return nil
}

// OnEntityUpdated subscribes to entity updates, restricted to ids when
// non-empty. The channel closes when ctx is cancelled or the feed ends.
func (c *Client) OnEntityUpdated(ctx context.Context, ids []felt.Felt) (<-chan Update, error) {
	return c.backend.Subscribe(ctx, ids)
}

// StartSubscription opens the update feed that keeps synced storage fresh.
// The feed is opened before returning; the returned run function pumps it
// until ctx is cancelled or the feed ends.
func (c *Client) StartSubscription(ctx context.Context) (func(context.Context) error, error) {
	updates, err := c.backend.Subscribe(ctx, nil)
	if err != nil {
		return nil, err
	}

	run := func(ctx context.Context) error {
		slog.Info("subscription service starting")
		for {
			select {
			case <-ctx.Done():
				slog.Info("subscription service stopping: context cancelled")
				return ctx.Err()
			case u, ok := <-updates:
				if !ok {
					slog.Info("subscription service stopping: feed closed")
					return nil
				}
				if u.Err != nil {
					slog.Warn("skipping malformed update", "error", u.Err)
					continue
				}
				c.apply(u.Entity)
			}
		}
	}
	return run, nil
}

// apply writes the synced models of an updated entity into storage. Every
// write signals the slot's listeners, including rewrites of an equal value.
func (c *Client) apply(e schema.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range e.Models {
		keys, err := m.Keys()
		if err != nil {
			slog.Warn("skipping model with unusable keys", "entity", e.HashedKeys.String(), "model", m.Name, "error", err)
			continue
		}
		clause := query.KeysClause{Model: m.Name, Keys: keys}
		next := m.AsStruct()

		for _, f := range c.fetching[clause.Key()] {
			f.latest = schema.Clone(next)
		}
		if !c.synced.Contains(clause) {
			continue
		}
		modelID, err := clause.ModelID()
		if err != nil {
			continue
		}
		c.storage.Set(modelID, keys, next)
		slog.Debug("synced model updated", "clause", clause.String(), "entity", e.HashedKeys.String())
	}
}
