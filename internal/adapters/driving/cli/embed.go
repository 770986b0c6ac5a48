package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

var (
	embedAll   bool
	embedModel string
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Manage content embeddings",
}

var embedDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Embed queued content units",
	Long: `Claim queued content units, embed them with the configured producer
and publish the vectors. With --all, repeat until the queue is empty.`,
	Args: cobra.NoArgs,
	RunE: runEmbedDrain,
}

var embedUpsertCmd = &cobra.Command{
	Use:   "upsert [file]",
	Short: "Store embeddings produced elsewhere",
	Long: `Read a JSON array of embeddings from file (or stdin with "-") and store them.

Each element is {"document_id", "content_type", "content_reference", "embedding"}.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbedUpsert,
}

func init() {
	embedDrainCmd.Flags().BoolVar(&embedAll, "all", false, "drain until the queue is empty")
	embedUpsertCmd.Flags().StringVar(&embedModel, "model", "external", "model identifier recorded with each embedding")
	embedCmd.AddCommand(embedDrainCmd)
	embedCmd.AddCommand(embedUpsertCmd)
	rootCmd.AddCommand(embedCmd)
}

func runEmbedDrain(cmd *cobra.Command, _ []string) error {
	if embeddingWorker == nil {
		return errors.New("embedding worker not configured")
	}

	total := 0
	for {
		n, err := embeddingWorker.DrainOnce(cmd.Context())
		total += n
		if err != nil {
			return fmt.Errorf("draining embedding queue: %w", err)
		}
		if !embedAll || n == 0 {
			break
		}
	}
	cmd.Printf("Embedded %d content units\n", total)
	return nil
}

// embeddingTuple is the wire form written by external embedding producers.
type embeddingTuple struct {
	DocumentID       int64     `json:"document_id"`
	ContentType      string    `json:"content_type"`
	ContentReference string    `json:"content_reference"`
	Embedding        []float32 `json:"embedding"`
}

func runEmbedUpsert(cmd *cobra.Command, args []string) error {
	if vectorService == nil {
		return errors.New("vector service not configured")
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	var tuples []embeddingTuple
	if err := json.NewDecoder(r).Decode(&tuples); err != nil {
		return fmt.Errorf("%w: decoding embeddings: %v", domain.ErrInvalidInput, err)
	}

	stored := 0
	for _, t := range tuples {
		entry := domain.VectorEntry{
			Unit: domain.ContentUnit{
				DocumentID: t.DocumentID,
				Type:       domain.ContentType(t.ContentType),
				Reference:  t.ContentReference,
			},
			Embedding: t.Embedding,
			ModelID:   embedModel,
		}
		if err := vectorService.UpsertEmbedding(cmd.Context(), entry); err != nil {
			cmd.PrintErrf("skipping %s: %v\n", entry.Unit.Key(), err)
			continue
		}
		stored++
	}
	cmd.Printf("Stored %d of %d embeddings\n", stored, len(tuples))
	return nil
}
