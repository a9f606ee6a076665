package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/schema"
	"github.com/MartianGreed/dojo.c/internal/store"
)

const arenaFixture = `name: arena
entities:
  - hashed_keys: "0x1"
    models:
      - name: Position
        members:
          - name: player
            key: true
            ty: {primitive: {type: contractaddress, value: "0x1"}}
          - name: x
            ty: {primitive: {type: u32, value: "5"}}
  - hashed_keys: "0x2"
    models:
      - name: Position
        members:
          - name: player
            key: true
            ty: {primitive: {type: contractaddress, value: "0x2"}}
          - name: x
            ty: {primitive: {type: u32, value: "7"}}
`

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seededDB writes the arena fixture into a fresh database.
func seededDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "arena.yaml")
	require.NoError(t, os.WriteFile(fixturePath, []byte(arenaFixture), 0o644))

	db := filepath.Join(dir, "world.db")
	out, err := execute(t, "seed", "--db", db, fixturePath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 entities from arena")
	return db
}

func clientFlags(db string) []string {
	return []string{"--db", db, "--world", "0x1", "--rpc-url", "http://localhost:5050"}
}

func TestSeed_JSON(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "arena.yaml")
	require.NoError(t, os.WriteFile(fixturePath, []byte(arenaFixture), 0o644))

	out, err := execute(t, "seed", "--format", "json", "--db", filepath.Join(dir, "w.db"), fixturePath)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SeedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, SeedResult{Fixture: "arena", Entities: 2, Seq: 2}, resp.Data)
}

func TestSeed_MissingDatabase(t *testing.T) {
	_, err := execute(t, "seed", "fixture.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSeed_BadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\n"), 0o644))

	out, err := execute(t, "seed", "--db", filepath.Join(dir, "w.db"), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestEntities_ByKeys(t *testing.T) {
	db := seededDB(t)

	args := append([]string{"entities"}, clientFlags(db)...)
	out, err := execute(t, append(args, "--model", "Position", "--keys", "0x2")...)
	require.NoError(t, err)
	assert.Equal(t,
		`{"0x2":{"Position":{"player":{"type":"contractaddress","value":"0x2"},"x":{"type":"u32","value":7}}}}`,
		strings.TrimSpace(out))
}

func TestEntities_Page(t *testing.T) {
	db := seededDB(t)

	args := append([]string{"entities", "--format", "json", "--limit", "1", "--offset", "1"}, clientFlags(db)...)
	out, err := execute(t, args...)
	require.NoError(t, err)

	var resp struct {
		Status string                     `json:"status"`
		Data   map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, 1)
	assert.Contains(t, resp.Data, "0x2")
}

func TestEntities_KeysWithoutModel(t *testing.T) {
	db := seededDB(t)

	args := append([]string{"entities", "--keys", "0x1"}, clientFlags(db)...)
	_, err := execute(t, args...)
	require.Error(t, err)
}

func TestEntities_MalformedKey(t *testing.T) {
	db := seededDB(t)

	args := append([]string{"entities", "--model", "Position", "--keys", "nope"}, clientFlags(db)...)
	out, err := execute(t, args...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
	assert.Contains(t, out, "failed to parse entity keys")
}

func TestModel_FoundAndMissing(t *testing.T) {
	db := seededDB(t)

	args := append([]string{"model"}, clientFlags(db)...)
	out, err := execute(t, append(args, "Position", "0x1")...)
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"struct","value":{"player":{"type":"contractaddress","value":"0x1"},"x":{"type":"u32","value":5}}}`,
		strings.TrimSpace(out))

	out, err = execute(t, append(args, "Position", "0xdead")...)
	require.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(out))
}

func TestModel_BadWorldAddress(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "model", "--db", db, "--world", "0xzz", "--rpc-url", "http://x", "Position", "0x1")
	require.Error(t, err)
	assert.Contains(t, out, "failed to parse world address")
}

func TestModel_WithConfigFile(t *testing.T) {
	db := seededDB(t)
	cfgPath := filepath.Join(t.TempDir(), "dojo.yaml")
	cfg := "rpcUrl: http://localhost:5050\nworldAddress: \"0x1\"\ndatabase: " + db + "\nsync:\n  - model: Position\n    keys: [\"0x1\"]\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := execute(t, "model", "--config", cfgPath, "Position", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"x":{"type":"u32","value":5}`)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--world", "255", "--rpc-url", "https://rpc.example")
	require.NoError(t, err)
	assert.Contains(t, out, "config valid (world 0xff)")

	out, err = execute(t, "validate", "--world", "255", "--rpc-url", "rpc.example")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestWatch_PrintsUpdates(t *testing.T) {
	db := seededDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := NewRootCommand()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(ctx)
	cmd.SetArgs(append([]string{"watch", "--id", "0x2", "--poll-interval", "5ms"}, clientFlags(db)...))

	errc := make(chan error, 1)
	go func() { errc <- cmd.Execute() }()

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	update := func(id uint64, x uint32) {
		_, err := s.WriteEntity(context.Background(), schema.Entity{
			HashedKeys: felt.FromUint64(id),
			Models: []schema.Model{{Name: "Position", Members: []schema.Member{
				{Name: "player", Ty: schema.NewContractAddress(felt.FromUint64(id)), Key: true},
				{Name: "x", Ty: schema.NewU32(x)},
			}}},
		})
		require.NoError(t, err)
	}

	// The subscription may start after the first writes; keep writing
	// until one is printed.
	require.Eventually(t, func() bool {
		update(1, 100)
		update(2, 42)
		return strings.Contains(out.String(), `"x":{"type":"u32","value":42}`)
	}, 4*time.Second, 50*time.Millisecond)

	assert.NotContains(t, out.String(), `"0x1"`)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
