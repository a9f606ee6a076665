package store

import (
	"context"
	"fmt"

	"github.com/MartianGreed/dojo.c/internal/schema"
)

// WriteEntity upserts an entity and every model attached to it, and bumps
// the entity's update sequence. Returns the new sequence number.
//
// Models already stored for the entity but absent from e are kept. A model
// keeps its original attach position when it is overwritten.
func (s *Store) WriteEntity(ctx context.Context, e schema.Entity) (int64, error) {
	rows := make([]modelRow, 0, len(e.Models))
	for _, m := range e.Models {
		row, err := marshalModel(m)
		if err != nil {
			return 0, fmt.Errorf("write entity %s: %w", e.HashedKeys, err)
		}
		rows = append(rows, row)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write entity: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(updated_seq), 0) + 1 FROM entities`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write entity: next seq: %w", err)
	}

	id := e.HashedKeys.Hex64()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, updated_seq)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_seq = excluded.updated_seq
	`, id, seq)
	if err != nil {
		return 0, fmt.Errorf("write entity: upsert entity: %w", err)
	}

	for _, row := range rows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity_models (entity_id, model, keys, ty, position)
			VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM entity_models WHERE entity_id = ?))
			ON CONFLICT(entity_id, model) DO UPDATE SET keys = excluded.keys, ty = excluded.ty
		`, id, row.model, row.keys, row.ty, id)
		if err != nil {
			return 0, fmt.Errorf("write entity: upsert model %s: %w", row.model, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write entity: commit: %w", err)
	}

	return seq, nil
}

// WriteEntities writes entities in order and returns the last sequence
// number, or 0 for an empty batch.
func (s *Store) WriteEntities(ctx context.Context, entities []schema.Entity) (int64, error) {
	var last int64
	for _, e := range entities {
		seq, err := s.WriteEntity(ctx, e)
		if err != nil {
			return 0, err
		}
		last = seq
	}
	return last, nil
}
