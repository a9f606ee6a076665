package store

import (
	"path/filepath"
	"testing"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// positionModel builds a Position model keyed by player with a single x field.
func positionModel(player felt.Felt, x uint32) schema.Model {
	return schema.Model{Name: "Position", Members: []schema.Member{
		{Name: "player", Ty: schema.NewContractAddress(player), Key: true},
		{Name: "x", Ty: schema.NewU32(x)},
	}}
}

// movesModel builds a Moves model keyed by player.
func movesModel(player felt.Felt, remaining uint8) schema.Model {
	return schema.Model{Name: "Moves", Members: []schema.Member{
		{Name: "player", Ty: schema.NewContractAddress(player), Key: true},
		{Name: "remaining", Ty: schema.NewU8(remaining)},
	}}
}

func xOf(t *testing.T, m schema.Model) uint64 {
	t.Helper()
	for _, mem := range m.Members {
		if mem.Name == "x" {
			v, ok := mem.Ty.(schema.Primitive).Uint64()
			if !ok {
				t.Fatalf("x is not a narrow integer")
			}
			return v
		}
	}
	t.Fatalf("model %s has no x member", m.Name)
	return 0
}
