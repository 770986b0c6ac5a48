// Package driving declares what the CLI and the MCP server may ask of the
// core: searching, importing documents, resolving tenants, refreshing tags,
// draining the embedding queue and running the backfill.
//
// internal/core/services provides every implementation.
package driving
