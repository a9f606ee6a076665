// Package torii is the world client that sits between the boundary API and
// an indexer backend.
//
// The client owns two pieces of shared state:
//   - SyncSet: clauses kept up to date, mutex-guarded
//   - storage.Storage: the synced values, signalled on change
//
// StartSubscription opens one long-lived update feed that writes synced
// models into storage. OnEntityUpdated opens independent feeds for
// callers. Malformed feed items arrive as Update.Err and never end a feed.
package torii
