// Package migrations holds the numbered up/down SQL scripts applied by
// sqlite.NewStore.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
