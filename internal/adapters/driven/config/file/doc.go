// Package file provides the TOML-backed configuration store.
//
// Nested tables are flattened into dot-notation keys on load, so
//
//	[search]
//	semantic_weight = 0.6
//
// is read as "search.semantic_weight". Saving writes the tables back.
package file
