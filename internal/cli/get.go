package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pub/internal/app"
	"pub/internal/types"
)

func newGetCommand() *cobra.Command {
	opts := sharedOptions{}
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get the dependencies of the current package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGet(cmd.Context(), cmd, opts, types.SolveTypeGet, nil)
		},
	}
	bindSharedFlags(cmd, &opts)
	return cmd
}

func newUpgradeCommand() *cobra.Command {
	opts := sharedOptions{}
	cmd := &cobra.Command{
		Use:   "upgrade [packages...]",
		Short: "Upgrade dependencies to the newest allowed versions",
		Long: "Upgrade resolves again ignoring the lock file. Given package names " +
			"(exact, prefix* or *), only the matching packages are released.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, opts, types.SolveTypeUpgrade, args)
		},
	}
	bindSharedFlags(cmd, &opts)
	return cmd
}

func newDowngradeCommand() *cobra.Command {
	opts := sharedOptions{}
	cmd := &cobra.Command{
		Use:   "downgrade [packages...]",
		Short: "Downgrade dependencies to the oldest allowed versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, opts, types.SolveTypeDowngrade, args)
		},
	}
	bindSharedFlags(cmd, &opts)
	return cmd
}

func runGet(ctx context.Context, cmd *cobra.Command, opts sharedOptions, solveType types.SolveType, names []string) error {
	env := newAppService(cmd, opts)
	defer env.Close()

	req := app.GetRequest{
		Directory: opts.Directory,
		Type:      solveType,
		Unlock:    names,
		DryRun:    opts.DryRun,
	}
	result, err := env.service.Get(ctx, req)
	if metricsErr := env.metrics.WriteFile(resolveString(cmd, opts.MetricsFile, "metrics_file", "metrics-file")); metricsErr != nil {
		log.Ctx(ctx).Warn().Err(metricsErr).Msg("failed to write metrics file")
	}
	if err != nil {
		for _, hint := range app.FailureHints(err, req, env.offline) {
			fmt.Fprintln(cmd.ErrOrStderr(), hint)
		}
		return err
	}
	printChanges(cmd.OutOrStdout(), result, opts.DryRun)
	return nil
}

func printChanges(w io.Writer, result app.GetResult, dryRun bool) {
	for _, change := range result.Changes {
		switch change.Kind {
		case types.LockChangeAdded:
			fmt.Fprintf(w, "+ %s %s\n", change.Name, change.New.Version)
		case types.LockChangeRemoved:
			fmt.Fprintf(w, "- %s %s\n", change.Name, change.Old.Version)
		case types.LockChangeChanged:
			fmt.Fprintf(w, "> %s %s (was %s)\n", change.Name, change.New.Version, change.Old.Version)
		}
	}
	changed := result.Changed()
	switch {
	case dryRun && changed == 0:
		fmt.Fprintln(w, "No dependencies would change.")
	case dryRun:
		fmt.Fprintf(w, "Would change %d %s.\n", changed, plural(changed))
	case changed == 0:
		fmt.Fprintln(w, "Got dependencies!")
	default:
		fmt.Fprintf(w, "Changed %d %s!\n", changed, plural(changed))
	}
}

func plural(n int) string {
	if n == 1 {
		return "dependency"
	}
	return "dependencies"
}
