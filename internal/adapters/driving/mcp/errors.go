// Package mcp provides an MCP (Model Context Protocol) server adapter for
// vconsearch. It exposes keyword, semantic, hybrid and tag search over vCon
// documents to AI assistants, scoped to the caller's tenant.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrUnauthorized is returned when an HTTP bearer token fails verification.
var ErrUnauthorized = errors.New("mcp: invalid bearer token")
