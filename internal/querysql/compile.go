package querysql

import (
	"fmt"
	"strings"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
)

// SQLCompiler compiles entity queries to parameterized SQL for the SQLite
// indexer tables (entities, entity_models).
//
// CRITICAL: ALL queries include ORDER BY per CP-4 for deterministic results.
// CRITICAL: All values are parameterized (never interpolated) per HIGH-3.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to SQL selecting matching entity ids.
// Returns (sql, params, error) tuple.
//
// Limit and offset are bound as given. Range policy belongs to the caller.
func (c *SQLCompiler) Compile(q query.Query) (string, []any, error) {
	var (
		sql    string
		params []any
	)

	switch clause := q.Clause.(type) {
	case nil:
		sql = "SELECT e.id FROM entities e"
	case query.KeysClause:
		sql = "SELECT e.id FROM entities e" +
			" JOIN entity_models m ON m.entity_id = e.id" +
			" WHERE m.model = ? AND m.keys = ?"
		params = append(params, clause.Model, EncodeKeys(clause.Keys))
	case *query.KeysClause:
		return c.Compile(query.Query{Clause: *clause, Limit: q.Limit, Offset: q.Offset})
	default:
		return "", nil, fmt.Errorf("unsupported clause type: %T", q.Clause)
	}

	// MANDATORY: Always add ORDER BY per CP-4
	sql += " ORDER BY " + stableOrderKey("e") + " LIMIT ? OFFSET ?"
	params = append(params, int64(q.Limit), int64(q.Offset))

	return sql, params, nil
}

// CompileModel selects the wire-form value of one model for an exact key
// tuple. At most one row matches per entity; the lowest entity id wins if
// several entities share a key tuple.
func (c *SQLCompiler) CompileModel(clause query.KeysClause) (string, []any) {
	sql := "SELECT m.ty FROM entity_models m" +
		" WHERE m.model = ? AND m.keys = ?" +
		" ORDER BY m.entity_id ASC COLLATE BINARY LIMIT 1"
	return sql, []any{clause.Model, EncodeKeys(clause.Keys)}
}

// CompileSince selects entities updated after seq, optionally restricted to
// a set of identities, oldest update first.
func (c *SQLCompiler) CompileSince(seq int64, ids []felt.Felt) (string, []any) {
	sql := "SELECT e.id, e.updated_seq FROM entities e WHERE e.updated_seq > ?"
	params := []any{seq}

	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			params = append(params, id.Hex64())
		}
		sql += " AND e.id IN (" + strings.Join(placeholders, ", ") + ")"
	}

	sql += " ORDER BY e.updated_seq ASC, " + stableOrderKey("e")
	return sql, params
}

// stableOrderKey returns the ORDER BY clause for an entity alias.
// MANDATORY: Every query MUST call this function per CP-4.
// Ids are fixed-width hex, so binary order equals numeric order.
func stableOrderKey(alias string) string {
	return alias + ".id ASC COLLATE BINARY"
}

// EncodeKeys renders a key tuple as the entity_models.keys column value:
// fixed-width hex elements joined by "/". The empty tuple is "".
func EncodeKeys(keys []felt.Felt) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Hex64()
	}
	return strings.Join(parts, "/")
}

// DecodeKeys is the inverse of EncodeKeys.
func DecodeKeys(s string) ([]felt.Felt, error) {
	if s == "" {
		return []felt.Felt{}, nil
	}
	parts := strings.Split(s, "/")
	keys := make([]felt.Felt, len(parts))
	for i, p := range parts {
		k, err := felt.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("decode keys: %w", err)
		}
		keys[i] = k
	}
	return keys, nil
}
