package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/querysql"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

// Update is one entry of the change feed.
type Update struct {
	Seq    int64
	Entity schema.Entity
}

// Entities runs a paginated entity query.
// Results are ordered deterministically per CP-4 by identity.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Entities(ctx context.Context, q query.Query) ([]schema.Entity, error) {
	sqlText, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	ids, err := s.queryIDs(ctx, sqlText, params)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	entities := make([]schema.Entity, 0, len(ids))
	for _, id := range ids {
		e, err := s.readEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Model looks up one model value by exact key tuple. Returns (nil, nil)
// when no entity carries that model under those keys.
func (s *Store) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	sqlText, params := s.compiler.CompileModel(clause)

	var data string
	err := s.db.QueryRowContext(ctx, sqlText, params...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query model %s: %w", clause, err)
	}

	m, err := unmarshalModel(querysql.EncodeKeys(clause.Keys), data)
	if err != nil {
		return nil, fmt.Errorf("query model %s: %w", clause, err)
	}
	return m.AsStruct(), nil
}

// Entity reads a single entity by identity. Returns sql.ErrNoRows if absent.
func (s *Store) Entity(ctx context.Context, id felt.Felt) (schema.Entity, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, id.Hex64()).Scan(&exists)
	if err != nil {
		return schema.Entity{}, err
	}
	return s.readEntity(ctx, id.Hex64())
}

// EntitiesSince returns entities updated after seq, oldest first. A
// non-empty ids list restricts the feed to those identities.
func (s *Store) EntitiesSince(ctx context.Context, seq int64, ids []felt.Felt) ([]Update, error) {
	sqlText, params := s.compiler.CompileSince(seq, ids)

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}

	type pending struct {
		id  string
		seq int64
	}
	var found []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.seq); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan update: %w", err)
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	rows.Close()

	updates := make([]Update, 0, len(found))
	for _, p := range found {
		e, err := s.readEntity(ctx, p.id)
		if err != nil {
			return nil, err
		}
		updates = append(updates, Update{Seq: p.seq, Entity: e})
	}
	return updates, nil
}

// LatestSeq returns the highest update sequence, 0 for an empty store.
func (s *Store) LatestSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(updated_seq), 0) FROM entities`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}

// queryIDs runs a compiled id query. Rows are fully drained before any
// follow-up query since the pool holds a single connection.
func (s *Store) queryIDs(ctx context.Context, sqlText string, params []any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// readEntity loads an entity's models in attach order.
func (s *Store) readEntity(ctx context.Context, id string) (schema.Entity, error) {
	hashed, err := felt.Parse(id)
	if err != nil {
		return schema.Entity{}, fmt.Errorf("read entity %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT keys, ty FROM entity_models
		WHERE entity_id = ?
		ORDER BY position ASC, model COLLATE BINARY ASC
	`, id)
	if err != nil {
		return schema.Entity{}, fmt.Errorf("read entity %s: %w", hashed, err)
	}
	defer rows.Close()

	e := schema.Entity{HashedKeys: hashed, Models: []schema.Model{}}
	for rows.Next() {
		var keyCol, data string
		if err := rows.Scan(&keyCol, &data); err != nil {
			return schema.Entity{}, fmt.Errorf("read entity %s: %w", hashed, err)
		}
		m, err := unmarshalModel(keyCol, data)
		if err != nil {
			return schema.Entity{}, fmt.Errorf("read entity %s: %w", hashed, err)
		}
		e.Models = append(e.Models, m)
	}
	if err := rows.Err(); err != nil {
		return schema.Entity{}, fmt.Errorf("read entity %s: %w", hashed, err)
	}
	return e, nil
}
