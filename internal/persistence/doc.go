// Package persistence is the lease engine over a bounded row store.
//
// Records are appended per group. A sender leases a batch, ships it, and
// confirms the lease to delete the rows; an unconfirmed batch stays pending
// until AbandonAll makes it eligible again. Lease state lives only in
// memory, so a restart behaves like AbandonAll. Rows that no longer decode
// are deleted while leasing instead of failing the batch.
//
// An Engine does no locking of its own. Callers serialize every operation;
// in spool that is internal/channel.
package persistence
