package driven

import "context"

// Backfiller repairs denormalized tenant ids in bounded batches.
type Backfiller interface {
	// TenantBackfillTables lists the tables that carry a denormalized tenant id.
	TenantBackfillTables() []string

	// BackfillTenantBatch copies the parent document's tenant onto at most
	// batchSize rows of table whose tenant differs, and returns the number
	// of rows updated. A converged table yields 0.
	BackfillTenantBatch(ctx context.Context, table string, batchSize int) (int64, error)
}
