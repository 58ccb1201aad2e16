package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCmdSweep creates the sweep command.
func NewCmdSweep(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one detection sweep and exit",
		Long: `Runs a single detection sweep over the configured repositories:
discovers issues, re-scores assignees, advances stale issues through the
reminder and release lifecycle, and prints a summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, opts)
		},
	}

	addSweepFlags(cmd, opts)
	return cmd
}

// addSweepFlags adds the sweep-specific flags to a command.
func addSweepFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	cmd.Flags().StringSliceVarP(&opts.Repos, "repo", "r", nil, "Repository to sweep as owner/name (repeatable, overrides config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent sweep workers (overrides config)")
}

func runSweep(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	rt, err := setupRuntime(ctx, opts)
	if err != nil {
		return err
	}

	result, err := rt.scheduler.RunOnce(ctx)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("a sweep is already running")
	}

	fmt.Printf("Sweep complete: %d issues processed, %d transitions\n",
		result.Processed, result.Transitions)
	if result.Reminders > 0 {
		fmt.Printf("  reminders sent:  %d\n", result.Reminders)
	}
	if result.Released > 0 {
		fmt.Printf("  issues released: %d\n", result.Released)
	}
	if result.Resolved > 0 {
		fmt.Printf("  issues resolved: %d\n", result.Resolved)
	}
	if result.Skipped > 0 {
		fmt.Printf("  skipped:         %d\n", result.Skipped)
	}
	if result.Errors > 0 {
		fmt.Printf("  errors:          %d\n", result.Errors)
	}
	if result.RateLimited {
		fmt.Println("  rate limit reached; remaining issues retry next sweep")
	}
	fmt.Printf("API budget remaining: %d\n", rt.client.Budget().Remaining())

	return nil
}
