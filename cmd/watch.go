package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewCmdWatch creates the watch command.
func NewCmdWatch(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run sweeps continuously on the configured interval",
		Long: `Runs the detection engine as a long-lived process. A sweep runs
immediately on startup and then on every interval tick until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}

	addSweepFlags(cmd, opts)
	return cmd
}

func runWatch(cmd *cobra.Command, opts *Options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setupRuntime(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Watching %d repositories, sweeping every %s. Ctrl-C to stop.\n",
		len(repoList(rt, opts)), rt.settings.SweepInterval)

	err = rt.scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nStopped.")
		return nil
	}
	return err
}

func repoList(rt *runtime, opts *Options) []string {
	if len(opts.Repos) > 0 {
		return opts.Repos
	}
	return rt.cfg.Repos
}
