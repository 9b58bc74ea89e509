package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pub/internal/app"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the system cache",
	}
	cmd.AddCommand(newCacheListCommand())
	cmd.AddCommand(newCacheReclaimCommand())
	return cmd
}

func newCacheListCommand() *cobra.Command {
	opts := sharedOptions{}
	cmd := &cobra.Command{
		Use:   "list [pattern]",
		Short: "List cached packages, optionally filtered by a glob such as hosted/**/foo-*",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			env := newAppService(cmd, opts)
			defer env.Close()
			result, err := env.service.CacheList(cmd.Context(), app.CacheListRequest{Pattern: pattern})
			if err != nil {
				return err
			}
			for _, entry := range result.Entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry.Rel)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "System cache directory")
	return cmd
}

func newCacheReclaimCommand() *cobra.Command {
	opts := sharedOptions{}
	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Remove leftovers of interrupted downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := newAppService(cmd, opts)
			defer env.Close()
			result, err := env.service.CacheReclaim(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range result.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d %s.\n", len(result.Removed), pluralEntries(len(result.Removed)))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "System cache directory")
	return cmd
}

func pluralEntries(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
