// Package store provides the SQLite-backed world indexer that one-shot
// queries, model lookups and the polling update feed read from.
//
// Tables:
//   - entities: identity plus the logical sequence of its last update
//   - entity_models: one row per (entity, model) with the key tuple and the
//     model value in wire form
//
// A model's key tuple comes from schema.Model.ExplicitKeys when set, else
// from its key members. Explicit keys survive a read back.
//
// # Critical Patterns
//
// CP-2: Logical Time
//   - Updates are ordered by updated_seq INTEGER, NEVER timestamps
//   - The change feed resumes from the last seen seq
//
// CP-4: Deterministic Query Results
//   - All queries MUST include ORDER BY ... COLLATE BINARY
//   - Identities and keys are stored as fixed-width hex, so binary order
//     equals numeric order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
