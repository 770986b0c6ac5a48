package domain

import "time"

// BackfillTableReport summarises the batches run against one table.
type BackfillTableReport struct {
	Table        string
	Batches      int
	RowsAffected int64
	Retries      int
}

// BackfillReport summarises a tenant backfill run.
type BackfillReport struct {
	StartedAt time.Time
	EndedAt   time.Time
	Tables    []BackfillTableReport

	// Cancelled is true when the run stopped before every table converged.
	Cancelled bool
}

// RowsAffected totals rows across tables.
func (r BackfillReport) RowsAffected() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.RowsAffected
	}
	return n
}
