package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cookiewatch/cookiewatch/internal/output"
)

// NewCmdStatus creates the status command.
func NewCmdStatus(opts *Options) *cobra.Command {
	var showContributors bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked issues and contributor trust scores",
		Long: `Shows the engine's view of every tracked issue with its lifecycle
state, and optionally the latest contributor trust snapshots. Reads only
local state; no API calls are made.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(opts, showContributors)
		},
	}

	addStatusFlags(cmd, opts)
	cmd.Flags().BoolVarP(&showContributors, "contributors", "c", false, "Also show contributor trust scores")

	return cmd
}

// addStatusFlags adds the status-specific flags to a command.
func addStatusFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Format, "output", "o", "", "Output format (table, json)")
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
}

func runStatus(opts *Options, showContributors bool) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(output.Format(opts.Format))

	if opts.Format != string(output.FormatJSON) {
		if last := st.LastSweep(); !last.IsZero() {
			fmt.Printf("Last sweep: %s ago\n\n", time.Since(last).Round(time.Second))
		}
	}

	if err := formatter.FormatIssues(st.Issues(), os.Stdout); err != nil {
		return err
	}

	if showContributors {
		fmt.Println()
		if err := formatter.FormatContributors(st.Contributors(), os.Stdout); err != nil {
			return err
		}
	}

	return nil
}
