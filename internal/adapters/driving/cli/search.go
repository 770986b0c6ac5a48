package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

var (
	searchLimit     int
	searchJSON      bool
	searchTags      map[string]string
	searchStart     string
	searchEnd       string
	searchThreshold float64
	searchWeight    float64
	searchEmbedding string
	searchText      string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search vCon conversations",
	Long: `Search vCon conversations visible to the current tenant.

Modes:
  keyword   full-text search with web-search syntax
  semantic  cosine similarity against a query embedding
  hybrid    weighted fusion of keyword and semantic scores
  tags      documents carrying every given tag`,
}

var searchKeywordCmd = &cobra.Command{
	Use:   "keyword [query]",
	Short: "Full-text search",
	Long: `Full-text search over subjects, parties, dialog and analysis.

Words are ANDed, "or" separates alternatives and a leading "-" excludes a
word. Example: vconsearch search keyword 'refund or chargeback -spam'`,
	Args: cobra.ExactArgs(1),
	RunE: runSearchKeyword,
}

var searchSemanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Similarity search with an embedding",
	Long: `Similarity search against a query embedding.

Pass the embedding with --embedding (comma separated) or let the configured
embedding producer embed --text.`,
	Args: cobra.NoArgs,
	RunE: runSearchSemantic,
}

var searchHybridCmd = &cobra.Command{
	Use:   "hybrid [query]",
	Short: "Keyword and semantic search combined",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearchHybrid,
}

var searchTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Documents carrying every given tag",
	Args:  cobra.NoArgs,
	RunE:  runSearchTags,
}

func init() {
	for _, c := range []*cobra.Command{searchKeywordCmd, searchSemanticCmd, searchHybridCmd, searchTagsCmd} {
		c.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultLimit, "maximum number of results")
		c.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
		c.Flags().StringToStringVarP(&searchTags, "tag", "t", nil, "required tag as key=value (repeatable)")
		searchCmd.AddCommand(c)
	}

	searchKeywordCmd.Flags().StringVar(&searchStart, "start", "", "earliest creation time (RFC 3339)")
	searchKeywordCmd.Flags().StringVar(&searchEnd, "end", "", "latest creation time (RFC 3339)")

	for _, c := range []*cobra.Command{searchSemanticCmd, searchHybridCmd} {
		c.Flags().StringVar(&searchEmbedding, "embedding", "", "query embedding as comma-separated floats")
		c.Flags().StringVar(&searchText, "text", "", "text to embed with the embedding producer")
	}
	searchSemanticCmd.Flags().Float64Var(&searchThreshold, "threshold", domain.DefaultThreshold, "minimum similarity")
	searchHybridCmd.Flags().Float64Var(&searchWeight, "weight", domain.DefaultSemanticWeight, "semantic weight in [0,1]")

	rootCmd.AddCommand(searchCmd)
}

func runSearchKeyword(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	q := domain.KeywordQuery{Query: args[0], Tags: domain.TagFilter(searchTags), Limit: searchLimit}
	if q.Start, err = parseTimeFlag("start", searchStart); err != nil {
		return err
	}
	if q.End, err = parseTimeFlag("end", searchEnd); err != nil {
		return err
	}

	results, err := searchService.SearchKeyword(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputJSON(cmd, results)
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] document %d %s/%s (%.3f)\n", i+1, r.DocumentID, r.FieldKind, r.FieldReference, r.Rank)
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		cmd.Println()
	}
	return nil
}

func runSearchSemantic(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	embedding, err := queryEmbedding(ctx)
	if err != nil {
		return err
	}
	if embedding == nil {
		return errors.New("one of --embedding or --text is required")
	}

	threshold := searchThreshold
	results, err := searchService.SearchSemantic(ctx, domain.SemanticQuery{
		Embedding: embedding,
		Tags:      domain.TagFilter(searchTags),
		Threshold: &threshold,
		Limit:     searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputJSON(cmd, results)
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] document %d %s/%s (%.3f)\n", i+1, r.DocumentID, r.ContentType, r.ContentReference, r.Similarity)
		cmd.Printf("      %s\n", truncate(r.ContentText, 160))
		cmd.Println()
	}
	return nil
}

func runSearchHybrid(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	q := domain.HybridQuery{Tags: domain.TagFilter(searchTags), Limit: searchLimit}
	if len(args) == 1 {
		q.Query = args[0]
	}
	if q.Embedding, err = queryEmbedding(ctx); err != nil {
		return err
	}
	weight := searchWeight
	q.SemanticWeight = &weight

	results, err := searchService.SearchHybrid(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputJSON(cmd, results)
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] document %d (%.3f = semantic %.3f, keyword %.3f)\n",
			i+1, r.DocumentID, r.CombinedScore, r.SemanticScore, r.KeywordScore)
	}
	return nil
}

func runSearchTags(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	ctx, err := callerContext(cmd.Context())
	if err != nil {
		return err
	}

	ids, err := searchService.SearchByTags(ctx, domain.TagQuery{Tags: domain.TagFilter(searchTags), Limit: searchLimit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		if ids == nil {
			ids = []int64{}
		}
		return outputJSON(cmd, ids)
	}

	if len(ids) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}

// queryEmbedding returns the --embedding vector, the embedded --text, or
// nil when neither is given.
func queryEmbedding(ctx context.Context) ([]float32, error) {
	switch {
	case searchEmbedding != "" && searchText != "":
		return nil, errors.New("--embedding and --text are mutually exclusive")
	case searchEmbedding != "":
		return parseEmbedding(searchEmbedding)
	case searchText != "":
		if queryEmbedder == nil {
			return nil, domain.ErrEmbeddingUnavailable
		}
		v, err := queryEmbedder.Embed(ctx, searchText)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		return v, nil
	default:
		return nil, nil
	}
}

func parseEmbedding(s string) ([]float32, error) {
	parts := strings.Split(strings.Trim(s, "[] "), ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, domain.NewValidationError("embedding", fmt.Sprintf("%q is not a number", p))
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func parseTimeFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, domain.NewValidationError(name, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
