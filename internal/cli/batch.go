package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify citation clusters from a file",
	Long: `Batch verifies every cluster in a file, one per line:

  citation[; parallel citation...] [| case name [| context]]

All clusters share one circuit breaker, so a source that keeps failing is
skipped for the rest of the file. Results are written as JSON lines, one per
citation. Blank lines and lines starting with # are ignored.

Example:
  citeverify batch brief-citations.txt
  citeverify batch brief-citations.txt --concurrency 2 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "clusters verified concurrently (default: verification.citation_concurrency)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
}

// batchLine is one JSON line of batch output
type batchLine struct {
	ClusterID string `json:"cluster_id"`
	model.VerificationResult
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.Close()

	if concurrency <= 0 {
		concurrency = deps.cfg.Verification.CitationConcurrency
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	batch := deps.orch.NewBatch()
	processor := worker.NewBatchProcessor(batch, concurrency)

	fmt.Fprintf(os.Stderr, "Batch %s: %s (%d workers)\n", batch.ID, file, concurrency)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	counts := make(map[model.VerifiedStatus]int)
	failures := 0
	enc := json.NewEncoder(cmd.OutOrStdout())

	for _, r := range results {
		if r.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %v: %v\n", r.Cluster.Citations, r.Error)
			continue
		}
		for _, v := range r.Results {
			counts[v.Verified]++
			if err := enc.Encode(batchLine{ClusterID: r.Cluster.ID, VerificationResult: v}); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Clusters:          %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Verified:          %d\n", counts[model.StatusTrue])
	fmt.Fprintf(os.Stderr, "  True by parallel:  %d\n", counts[model.StatusTrueByParallel])
	fmt.Fprintf(os.Stderr, "  Unconfirmed:       %d\n", counts[model.StatusUnconfirmed])
	fmt.Fprintf(os.Stderr, "  False:             %d\n", counts[model.StatusFalse])
	fmt.Fprintf(os.Stderr, "  Failures:          %d\n", failures)
	if tripped := batch.Breaker().Tripped(); len(tripped) > 0 {
		fmt.Fprintf(os.Stderr, "  Sources disabled:  %v\n", tripped)
	}

	return nil
}
