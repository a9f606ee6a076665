package dojo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/MartianGreed/dojo.c/internal/config"
	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/ir"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/torii"
)

var errBoom = errors.New("boom")

// entry is one stored model together with the key tuple it is addressed by.
type entry struct {
	id    felt.Felt
	model schema.Model
	keys  []felt.Felt
}

// memBackend is an in-memory torii.Backend. Updates pushed with publish go
// to every open subscription.
type memBackend struct {
	mu      sync.Mutex
	entries []entry
	subs    map[chan torii.Update][]felt.Felt
	failErr error

	// subscribed runs after a subscription opens, before it is returned.
	subscribed func()
}

func newMemBackend() *memBackend {
	return &memBackend{subs: make(map[chan torii.Update][]felt.Felt)}
}

func (b *memBackend) put(id felt.Felt, m schema.Model, keys ...felt.Felt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry{id: id, model: m, keys: keys})
}

func (b *memBackend) Entities(ctx context.Context, q query.Query) ([]schema.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return nil, b.failErr
	}

	var out []schema.Entity
	for _, e := range b.entries {
		if kc, ok := q.Clause.(query.KeysClause); ok && !b.matches(e, kc) {
			continue
		}
		out = append(out, schema.Entity{HashedKeys: e.id, Models: []schema.Model{e.model}})
	}
	if int(q.Offset) >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if int(q.Limit) < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (b *memBackend) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return nil, b.failErr
	}
	for _, e := range b.entries {
		if b.matches(e, clause) {
			return e.model.AsStruct(), nil
		}
	}
	return nil, nil
}

func (b *memBackend) matches(e entry, clause query.KeysClause) bool {
	return query.KeysClause{Model: e.model.Name, Keys: e.keys}.Equal(clause)
}

func (b *memBackend) Subscribe(ctx context.Context, ids []felt.Felt) (<-chan torii.Update, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return nil, b.failErr
	}

	ch := make(chan torii.Update, 16)
	b.subs[ch] = ids
	context.AfterFunc(ctx, func() { b.drop(ch) })
	if b.subscribed != nil {
		b.subscribed()
	}
	return ch, nil
}

func (b *memBackend) drop(ch chan torii.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *memBackend) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// publish delivers u to every subscription whose filter admits it.
func (b *memBackend) publish(u torii.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, ids := range b.subs {
		if len(ids) > 0 && u.Err == nil && !containsFelt(ids, u.Entity.HashedKeys) {
			continue
		}
		ch <- u
	}
}

// end closes every open subscription as if the source went away.
func (b *memBackend) end() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func containsFelt(ids []felt.Felt, id felt.Felt) bool {
	for _, want := range ids {
		if want == id {
			return true
		}
	}
	return false
}

func testConfig() config.ClientConfig {
	return config.ClientConfig{RPCURL: "http://localhost:5050", WorldAddress: "0x1"}
}

func newTestClient(t *testing.T, b torii.Backend, initial ...query.EntityModel) *Client {
	t.Helper()
	c, err := CreateClient(context.Background(), initial, testConfig(), WithBackend(b))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// positionModel is keyed by its player member.
func positionModel(player uint64, x uint32) schema.Model {
	return schema.Model{Name: "Position", Members: []schema.Member{
		{Name: "player", Ty: schema.NewContractAddress(felt.FromUint64(player)), Key: true},
		{Name: "x", Ty: schema.NewU32(x)},
	}}
}

func positionUpdate(id, player uint64, x uint32) torii.Update {
	return torii.Update{Entity: schema.Entity{
		HashedKeys: felt.FromUint64(id),
		Models:     []schema.Model{positionModel(player, x)},
	}}
}

func marshal(t *testing.T, v ir.IRValue) string {
	t.Helper()
	data, err := ir.MarshalIRValue(v)
	require.NoError(t, err)
	return string(data)
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// metricValue reads a counter or gauge from reg, 0 when the series does
// not exist yet.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m.GetLabel(), labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v != p.GetValue() {
			return false
		}
	}
	return true
}
