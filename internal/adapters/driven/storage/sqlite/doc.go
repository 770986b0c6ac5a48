// Package sqlite stores everything in one vcons.db file through
// modernc.org/sqlite, which needs no cgo. A single Store hands out the
// document store, text index, tag source and tag index store, vector
// entries and embedding queue, backfiller and scheduler store.
//
// The schema lives in numbered migrations/NNN_name.up.sql scripts applied
// on open. Child and derived tables repeat documents.tenant_id so tenant
// predicates never need a join. DocumentStore writes keep the copies in
// step and Backfiller repairs rows written before that.
//
// The database runs in WAL mode, so readers never wait on the writer.
// The default location is ~/.vconsearch/data/vcons.db.
package sqlite
