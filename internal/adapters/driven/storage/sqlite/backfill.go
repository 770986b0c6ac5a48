package sqlite

import (
	"context"
	"fmt"
	"slices"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// backfiller implements driven.Backfiller.
type backfiller struct {
	store *Store
}

var _ driven.Backfiller = (*backfiller)(nil)

// TenantBackfillTables lists the tables with a denormalized tenant id.
func (b *backfiller) TenantBackfillTables() []string {
	return slices.Clone(tenantTables)
}

// BackfillTenantBatch updates at most batchSize drifted rows of table in a
// single statement. Converged rows never match, so re-running a finished
// batch updates nothing.
func (b *backfiller) BackfillTenantBatch(ctx context.Context, table string, batchSize int) (int64, error) {
	if !slices.Contains(tenantTables, table) {
		return 0, domain.NewValidationError("table", fmt.Sprintf("unknown table %q", table))
	}
	if batchSize <= 0 {
		return 0, domain.NewValidationError("batch_size", "must be positive")
	}

	res, err := b.store.db.ExecContext(ctx, `
		UPDATE `+table+` SET tenant_id = (
			SELECT d.tenant_id FROM documents d WHERE d.id = `+table+`.document_id
		)
		WHERE rowid IN (
			SELECT c.rowid FROM `+table+` c
			JOIN documents d ON d.id = c.document_id
			WHERE c.tenant_id IS NOT d.tenant_id
			LIMIT ?
		)
	`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("backfilling %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting backfilled rows: %w", err)
	}
	return n, nil
}
