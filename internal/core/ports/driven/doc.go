// Package driven lists the infrastructure the core calls out to. Adapters
// under internal/adapters/driven implement it.
//
// DocumentStore, TextIndex, TagSource, TagIndexStore and ConfigStore are
// always wired. The rest may be nil and the feature that needs them turns
// off: without a VectorIndex semantic and hybrid search fail with
// domain.ErrVectorIndexUnavailable, and without an EmbeddingProducer content stays
// queued. DocumentCache, Backfiller and SchedulerStore are likewise
// optional.
//
// Reads of tenant-owned rows take a domain.TenantScope and apply the
// shared-or-own rule in the query itself, never by filtering afterwards.
package driven
