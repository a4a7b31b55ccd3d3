// Package rowstore defines the bounded row store that backs the persistence
// engine: a durable table of (RowID, group, payload) rows kept in insertion
// order, filtered by group, and capped at a store-wide capacity by evicting
// the oldest rows on insert.
//
// Backends live in subpackages:
//   - pebblerows: Pebble, the default on-disk backend
//   - sqliterows: SQLite via zombiezen.com/go/sqlite
//   - memrows:    an in-memory B-tree, for tests and ephemeral buffering
//
// rowstoretest holds the conformance suite every backend runs.
package rowstore
