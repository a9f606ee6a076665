package torii

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/storage"
	"github.com/MartianGreed/dojo.c/internal/store"
)

// fakeBackend serves models from a map and streams whatever is pushed to it.
type fakeBackend struct {
	mu       sync.Mutex
	models   map[string]schema.Ty
	failOn   map[string]error
	fetches  int
	feed     chan Update
	subErr   error
	entities []schema.Entity
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		models: make(map[string]schema.Ty),
		failOn: make(map[string]error),
		feed:   make(chan Update, 16),
	}
}

func (f *fakeBackend) put(clause query.KeysClause, ty schema.Ty) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[clause.Key()] = ty
}

func (f *fakeBackend) fail(clause query.KeysClause, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[clause.Key()] = err
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBackend) Entities(ctx context.Context, q query.Query) ([]schema.Entity, error) {
	return f.entities, nil
}

func (f *fakeBackend) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if err := f.failOn[clause.Key()]; err != nil {
		return nil, err
	}
	return f.models[clause.Key()], nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, ids []felt.Felt) (<-chan Update, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.feed, nil
}

var errBoom = errors.New("boom")

// gatedBackend holds the first Model fetch until release is closed.
type gatedBackend struct {
	*fakeBackend
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedBackend(inner *fakeBackend) *gatedBackend {
	return &gatedBackend{fakeBackend: inner, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedBackend) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.fakeBackend.Model(ctx, clause)
}

// fetchSawUpdate reports whether an in-flight fetch for clause has been
// handed a feed value.
func (c *Client) fetchSawUpdate(clause query.KeysClause) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.fetching[clause.Key()] {
		if f.latest != nil {
			return true
		}
	}
	return false
}

func listen(t *testing.T, c *Client, clause query.KeysClause) *storage.Listener {
	t.Helper()
	modelID, err := clause.ModelID()
	require.NoError(t, err)
	l := c.Storage().AddListener(modelID, clause.Keys)
	t.Cleanup(l.Close)
	return l
}

func drain(l *storage.Listener) {
	select {
	case <-l.C():
	default:
	}
}

func positionClause(player uint64) query.KeysClause {
	return query.KeysClause{Model: "Position", Keys: []felt.Felt{felt.FromUint64(player)}}
}

func positionModel(player uint64, x uint32) schema.Model {
	return schema.Model{Name: "Position", Members: []schema.Member{
		{Name: "player", Ty: schema.NewContractAddress(felt.FromUint64(player)), Key: true},
		{Name: "x", Ty: schema.NewU32(x)},
	}}
}

func stateClause(player uint64) query.KeysClause {
	return query.KeysClause{Model: "State", Keys: []felt.Felt{felt.FromUint64(player)}}
}

// stateModel carries a status enum whose selected Hurt option holds hp.
func stateModel(player uint64, hp uint32) schema.Model {
	return schema.Model{Name: "State", Members: []schema.Member{
		{Name: "player", Ty: schema.NewContractAddress(felt.FromUint64(player)), Key: true},
		{Name: "status", Ty: &schema.Enum{Name: "Status", Option: schema.OptionIndex(1), Options: []schema.EnumOption{
			{Name: "Healthy", Ty: &schema.Tuple{Elems: []schema.Ty{}}},
			{Name: "Hurt", Ty: schema.NewU32(hp)},
		}}},
	}}
}

func hpOf(t *testing.T, ty schema.Ty) uint64 {
	t.Helper()
	s, ok := ty.(*schema.Struct)
	require.True(t, ok, "expected struct, got %T", ty)
	m, ok := s.Member("status")
	require.True(t, ok)
	opt, ok := m.Ty.(*schema.Enum).Selected()
	require.True(t, ok)
	v, ok := opt.Ty.(schema.Primitive).Uint64()
	require.True(t, ok)
	return v
}

func xOf(t *testing.T, ty schema.Ty) uint64 {
	t.Helper()
	s, ok := ty.(*schema.Struct)
	require.True(t, ok, "expected struct, got %T", ty)
	m, ok := s.Member("x")
	require.True(t, ok)
	v, ok := m.Ty.(schema.Primitive).Uint64()
	require.True(t, ok)
	return v
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func recv(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "feed closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func waitClosed(t *testing.T, ch <-chan Update) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed did not close")
		}
	}
}
