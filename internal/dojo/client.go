package dojo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MartianGreed/dojo.c/internal/codec"
	"github.com/MartianGreed/dojo.c/internal/config"
	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/ir"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/store"
	"github.com/MartianGreed/dojo.c/internal/torii"
)

// Client is the boundary surface of a world client. Every value it returns
// is already encoded into {type, value} form.
//
// Thread-safety: all methods are safe for concurrent use.
type Client struct {
	inner   *torii.Client
	metrics *Metrics
	ids     IDGenerator

	// ctx parents every listener and the subscription service.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type options struct {
	backend torii.Backend
	store   *store.Store
	metrics *Metrics
	ids     IDGenerator
	torii   []torii.ClientOption
}

// Option configures CreateClient.
type Option func(*options)

// WithBackend uses b instead of building one from the config.
func WithBackend(b torii.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithStore sets the local indexer used for fetches. When the config names a
// torii URL, updates arrive over a websocket and fetches still go to s.
func WithStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithMetrics reports to m instead of a private registry.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithIDGenerator sets how registration IDs are made. Defaults to UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithToriiOptions passes options through to the underlying torii client.
func WithToriiOptions(opts ...torii.ClientOption) Option {
	return func(o *options) { o.torii = append(o.torii, opts...) }
}

// CreateClient builds a client, syncs the initial models and starts the
// subscription service in the background. Close releases it.
func CreateClient(ctx context.Context, initial []query.EntityModel, cfg config.ClientConfig, opts ...Option) (*Client, error) {
	clauses, err := query.Clauses(initial)
	if err != nil {
		return nil, err
	}

	world, err := felt.Parse(cfg.WorldAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to parse world address: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, &TransportError{Op: "build client", Err: err}
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}

	backend, err := buildBackend(cfg, o)
	if err != nil {
		return nil, &TransportError{Op: "build client", Err: err}
	}

	inner, err := torii.New(torii.Config{Backend: backend, WorldAddress: world}, o.torii...)
	if err != nil {
		return nil, &TransportError{Op: "build client", Err: err}
	}
	if err := inner.AddModelsToSync(ctx, clauses); err != nil {
		return nil, &TransportError{Op: "build client", Err: err}
	}

	rootCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run, err := inner.StartSubscription(rootCtx)
	if err != nil {
		cancel()
		return nil, &TransportError{Op: "start torii client subscription service", Err: err}
	}

	c := &Client{
		inner:   inner,
		metrics: o.metrics,
		ids:     o.ids,
		ctx:     rootCtx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("subscription service stopped", "error", err)
		}
	}()

	slog.Info("client created", "world", world, "synced", len(clauses), "torii", cfg.ToriiURL)
	return c, nil
}

func buildBackend(cfg config.ClientConfig, o *options) (torii.Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}
	if o.store == nil {
		return nil, errors.New("no backend or store configured")
	}
	local := torii.NewLocalBackend(o.store)
	if cfg.ToriiURL == "" {
		return local, nil
	}
	return torii.NewWSBackend(cfg.ToriiURL, local), nil
}

// Close stops the subscription service and every listener, then waits for
// them to exit.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// Metrics returns the collectors this client reports to.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// WorldAddress returns the world the client was built for.
func (c *Client) WorldAddress() felt.Felt {
	return c.inner.WorldAddress()
}

// SyncedModels lists the models currently kept in sync.
func (c *Client) SyncedModels() []query.EntityModel {
	clauses := c.inner.SyncedModels()
	out := make([]query.EntityModel, len(clauses))
	for i, clause := range clauses {
		out[i] = clause.EntityModel()
	}
	return out
}

// GetEntities returns one page of all entities, encoded.
func (c *Client) GetEntities(ctx context.Context, limit, offset uint32) (*ir.IRObject, error) {
	return c.entities(ctx, query.Query{Limit: limit, Offset: offset})
}

// GetEntitiesByKeys returns one page of the entities whose model has exactly
// the given keys, encoded.
func (c *Client) GetEntitiesByKeys(ctx context.Context, model string, keys []string, limit, offset uint32) (*ir.IRObject, error) {
	clause, err := query.BuildClause(model, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity keys: %w", err)
	}
	return c.entities(ctx, query.Query{Clause: clause, Limit: limit, Offset: offset})
}

func (c *Client) entities(ctx context.Context, q query.Query) (*ir.IRObject, error) {
	start := time.Now()
	entities, err := c.inner.Entities(ctx, q)
	c.metrics.observe("get_entities", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, &TransportError{Op: "get entities", Err: err}
	}
	return codec.EncodeEntities(entities)
}

// GetModelValue returns the encoded model value, or IRNull when no entity
// holds it. Synced models are served from local storage.
func (c *Client) GetModelValue(ctx context.Context, model string, keys []string) (ir.IRValue, error) {
	clause, err := query.BuildClause(model, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity keys: %w", err)
	}

	start := time.Now()
	ty, err := c.inner.Model(ctx, clause)
	c.metrics.observe("get_model_value", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, &TransportError{Op: "get entity", Err: err}
	}
	if ty == nil {
		return ir.IRNull{}, nil
	}
	return codec.EncodeTy(ty)
}

// AddModelsToSync starts syncing the given models. Either all are added or
// none are.
func (c *Client) AddModelsToSync(ctx context.Context, models []query.EntityModel) error {
	slog.Debug("adding models to sync", "count", len(models))
	clauses, err := query.Clauses(models)
	if err != nil {
		return err
	}
	if err := c.inner.AddModelsToSync(ctx, clauses); err != nil {
		return &TransportError{Op: "add models to sync", Err: err}
	}
	return nil
}

// RemoveModelsToSync stops syncing the given models. Models that were never
// synced are ignored.
func (c *Client) RemoveModelsToSync(ctx context.Context, models []query.EntityModel) error {
	slog.Debug("removing models to sync", "count", len(models))
	clauses, err := query.Clauses(models)
	if err != nil {
		return err
	}
	if err := c.inner.RemoveModelsToSync(ctx, clauses); err != nil {
		return &TransportError{Op: "remove models to sync", Err: err}
	}
	return nil
}

// OnSyncModelChange calls cb every time the synced value of em changes.
// Bursts of changes between two calls are coalesced into one.
func (c *Client) OnSyncModelChange(em query.EntityModel, cb func()) (*Registration, error) {
	clause, err := em.Clause()
	if err != nil {
		return nil, err
	}
	modelID, err := clause.ModelID()
	if err != nil {
		return nil, fmt.Errorf("invalid model name: %w", err)
	}

	listener := c.inner.Storage().AddListener(modelID, clause.Keys)
	ctx, cancel := context.WithCancel(c.ctx)
	reg := newRegistration(c.ids.Generate(), KindModel, cancel)

	c.start(reg, func() error {
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-listener.C():
				if !ok {
					return &StreamTerminationError{Kind: reg.Kind, ID: reg.ID.String()}
				}
				if reg.invoke(cb) {
					c.metrics.deliveries.WithLabelValues(reg.Kind).Inc()
				}
			}
		}
	})

	slog.Debug("listener registered", "kind", reg.Kind, "registration", reg.ID, "clause", clause)
	return reg, nil
}

// OnEntityUpdated calls cb with the encoded entity map of each updated
// entity. An empty ids list matches every entity. ctx bounds only the
// subscription handshake.
func (c *Client) OnEntityUpdated(ctx context.Context, ids []string, cb func(*ir.IRObject)) (*Registration, error) {
	identities, err := query.ParseIdentities(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity id: %w", err)
	}

	regCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)
	feed, err := c.inner.OnEntityUpdated(regCtx, identities)
	if !stop() && err == nil {
		// ctx ended after the handshake and has already cancelled regCtx.
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, &TransportError{Op: "subscribe to entity updates", Err: err}
	}

	reg := newRegistration(c.ids.Generate(), KindEntity, cancel)
	c.start(reg, func() error {
		for {
			select {
			case <-regCtx.Done():
				return nil
			case u, ok := <-feed:
				if !ok {
					if regCtx.Err() != nil {
						return nil
					}
					return &StreamTerminationError{Kind: reg.Kind, ID: reg.ID.String()}
				}
				c.deliverEntity(reg, u, cb)
			}
		}
	})

	slog.Debug("listener registered", "kind", reg.Kind, "registration", reg.ID, "ids", len(identities))
	return reg, nil
}

func (c *Client) deliverEntity(reg *Registration, u torii.Update, cb func(*ir.IRObject)) {
	if u.Err != nil {
		c.metrics.streamErrors.Inc()
		slog.Warn("skipping malformed entity update", "registration", reg.ID, "error", u.Err)
		return
	}
	encoded, err := codec.EncodeEntities([]schema.Entity{u.Entity})
	if err != nil {
		c.metrics.streamErrors.Inc()
		slog.Warn("skipping unencodable entity update", "registration", reg.ID, "entity", u.Entity.HashedKeys, "error", err)
		return
	}
	if reg.invoke(func() { cb(encoded) }) {
		c.metrics.deliveries.WithLabelValues(reg.Kind).Inc()
	}
}

// start runs loop in the background under the client's wait group.
func (c *Client) start(reg *Registration, loop func() error) {
	active := c.metrics.active.WithLabelValues(reg.Kind)
	active.Inc()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		err := loop()
		active.Dec()
		if err != nil {
			slog.Info("listener ended", "kind", reg.Kind, "registration", reg.ID, "reason", err)
		}
		reg.finish(err)
	}()
}
