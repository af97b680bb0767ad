package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citeverify/internal/model"
)

var (
	caseName   string
	docContext string
	timeout    time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <citation>",
	Short: "Verify a single citation",
	Long: `Verify looks up one citation and prints the result as JSON.

Example:
  citeverify verify "347 U.S. 483"
  citeverify verify "200 Wn.2d 72" --name "Convoyant, LLC v. DeepThink, LLC"`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

// clusterCmd represents the cluster command
var clusterCmd = &cobra.Command{
	Use:   "cluster <citation>...",
	Short: "Verify parallel citations of one case",
	Long: `Cluster verifies parallel citations together. When any citation is
confirmed, the others are reported as "true_by_parallel" under the same case name.

Example:
  citeverify cluster "200 Wn.2d 72" "514 P.3d 643" --name "Convoyant, LLC v. DeepThink, LLC"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(clusterCmd)

	for _, cmd := range []*cobra.Command{verifyCmd, clusterCmd} {
		cmd.Flags().StringVar(&caseName, "name", "", "expected case name")
		cmd.Flags().StringVar(&docContext, "context", "", "surrounding document text")
		cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := deps.orch.Verify(ctx, args[0], caseName, docContext)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runCluster(cmd *cobra.Command, args []string) error {
	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	results, err := deps.orch.VerifyCluster(ctx, model.Cluster{
		Citations:    args,
		CaseNameHint: caseName,
		Context:      docContext,
	})
	if err != nil {
		return fmt.Errorf("verify cluster: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), results)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
