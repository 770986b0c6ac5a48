package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run maintenance backfills",
}

var backfillTenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Copy document tenants onto child and derived rows",
	Long: `Copy each document's tenant onto its parties, dialog, analysis,
attachments and derived index rows in bounded batches.

Each batch commits on its own and is retried on transient failures, so the
job can be interrupted (Ctrl-C) and resumed without repeating work.`,
	Args: cobra.NoArgs,
	RunE: runBackfillTenants,
}

func init() {
	backfillCmd.AddCommand(backfillTenantsCmd)
	rootCmd.AddCommand(backfillCmd)
}

func runBackfillTenants(cmd *cobra.Command, _ []string) error {
	if backfillService == nil {
		return errors.New("backfill service not configured")
	}

	report, err := backfillService.BackfillTenants(cmd.Context())
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	for _, t := range report.Tables {
		cmd.Printf("  %-20s %6d rows in %d batches (%d retries)\n", t.Table, t.RowsAffected, t.Batches, t.Retries)
	}
	status := "complete"
	if report.Cancelled {
		status = "interrupted"
	}
	cmd.Printf("Backfill %s: %d rows in %s\n", status, report.RowsAffected(), report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}
