package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/vcon"
)

var (
	importTenant  string
	listSubject   string
	listLimit     int
	setTenantNone bool
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage vCon documents",
	Long:  `Import, list, view, delete, or re-tenant vCon documents.`,
}

var documentImportCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import vCon JSON files",
	Long: `Import vCon JSON files ("-" reads stdin). Documents are upserted by uuid;
keyword search sees them immediately and their content is queued for embedding.

Updating a document owned by a tenant requires --tenant set to that tenant.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocumentImport,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [uuid]",
	Short: "Print a document as vCon JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and everything derived from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentSetTenantCmd = &cobra.Command{
	Use:   "set-tenant [doc-id] [tenant]",
	Short: "Move a document to another tenant",
	Long:  `Move a document to another tenant, or make it shared with --shared.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDocumentSetTenant,
}

func init() {
	documentImportCmd.Flags().StringVar(&importTenant, "owner", "", "tenant that owns imported documents (default: shared)")
	documentListCmd.Flags().StringVar(&listSubject, "subject", "", "only documents whose subject contains this text")
	documentListCmd.Flags().IntVarP(&listLimit, "limit", "n", domain.DefaultLimit, "maximum number of documents")
	documentSetTenantCmd.Flags().BoolVar(&setTenantNone, "shared", false, "make the document visible to every tenant")

	documentCmd.AddCommand(documentImportCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentSetTenantCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentImport(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	for _, path := range args {
		v, err := readVCon(cmd, path)
		if err != nil {
			return err
		}
		rec := v.Record()
		if importTenant != "" {
			rec.TenantID = domain.StringPtr(importTenant)
		}

		res, err := documentService.Save(ctx, rec)
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		verb := "Updated"
		if res.Created {
			verb = "Imported"
		}
		cmd.Printf("%s document %d (%s), %d units queued for embedding\n",
			verb, res.Document.ID, res.Document.UUID, res.Enqueued)
	}
	return nil
}

func readVCon(cmd *cobra.Command, path string) (*vcon.VCon, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	v, err := vcon.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	docs, err := documentService.List(ctx, driven.DocumentFilter{Subject: listSubject, Limit: listLimit})
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("%6d  %s  %-10s  %s  %s\n", d.ID, d.UUID, ownerName(d.TenantID), d.CreatedAt.Format(time.DateOnly), d.Subject)
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	rec, err := documentService.GetByUUID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}
	return vcon.Encode(cmd.OutOrStdout(), vcon.FromRecord(rec))
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	if err := documentService.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	cmd.Printf("Deleted document %d\n", id)
	return nil
}

func runDocumentSetTenant(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}

	var target *string
	switch {
	case setTenantNone && len(args) == 2:
		return errors.New("--shared and a tenant are mutually exclusive")
	case setTenantNone:
	case len(args) == 2:
		target = domain.StringPtr(args[1])
	default:
		return errors.New("a tenant or --shared is required")
	}

	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}
	if err := documentService.SetTenant(ctx, id, target); err != nil {
		return fmt.Errorf("setting tenant: %w", err)
	}
	cmd.Printf("Document %d is now owned by %s\n", id, ownerName(target))
	return nil
}

func parseDocumentID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", s)
	}
	return id, nil
}

func ownerName(tenantID *string) string {
	if tenantID == nil {
		return "shared"
	}
	return *tenantID
}
