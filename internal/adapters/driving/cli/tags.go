package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage the tag index",
}

var tagsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the tag index from tag attachments",
	Long: `Rebuild the tag index from every "tags" attachment and publish it.

Running refresh twice without intervening writes reports 0 rows the second time.`,
	Args: cobra.NoArgs,
	RunE: runTagsRefresh,
}

var tagsShowCmd = &cobra.Command{
	Use:   "show [document-id]",
	Short: "Show the indexed tags of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsShow,
}

func init() {
	tagsCmd.AddCommand(tagsRefreshCmd)
	tagsCmd.AddCommand(tagsShowCmd)
	rootCmd.AddCommand(tagsCmd)
}

func runTagsRefresh(cmd *cobra.Command, _ []string) error {
	if tagService == nil {
		return errors.New("tag service not configured")
	}

	res, err := tagService.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refreshing tag index: %w", err)
	}
	cmd.Printf("Tag index refreshed at %s: %d rows affected\n", res.RefreshedAt.Format(time.RFC3339), res.RowsAffected)
	return nil
}

func runTagsShow(cmd *cobra.Command, args []string) error {
	if tagService == nil {
		return errors.New("tag service not configured")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	entry, ok := tagService.Snapshot().Get(id)
	if !ok || !tenant.Resolve(ctx).Visible(entry.TenantID) {
		cmd.Println("No tags indexed.")
		return nil
	}

	keys := make([]string, 0, len(entry.Tags))
	for k := range entry.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("%s: %s\n", k, entry.Tags[k])
	}
	return nil
}
