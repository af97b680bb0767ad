package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the verification cache",
}

var (
	invalidateName string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result and URL status",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.cache.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cache cleared")
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <citation>",
	Short: "Forget the cached result for one citation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.cache.Invalidate(args[0], invalidateName); err != nil {
			return fmt.Errorf("invalidate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Invalidated %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)

	cacheInvalidateCmd.Flags().StringVar(&invalidateName, "name", "", "case-name hint the result was cached under")
}
