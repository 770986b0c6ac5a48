// Package domain holds the types every other layer speaks in:
//
//   - Document and its participants, dialog turns, analysis and attachments
//   - TextField, the weighted lexical form of one text-bearing field
//   - ContentUnit and VectorEntry, embeddable fragments and their vectors
//   - TagIndexEntry and TagSnapshot, the derived key/value tag index
//   - TenantScope, the caller's resolved tenant and its visibility rule
//   - the search queries and results of each retrieval mode
//
// It imports nothing outside the standard library, and nothing in
// internal/ is imported by it.
package domain
