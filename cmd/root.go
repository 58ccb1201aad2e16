package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "cookiewatch",
		Short: "Cookie-licking detection for GitHub issues",
		Long: `Detects GitHub issues that were claimed and then abandoned. Periodic
sweeps score each assignee's recent activity, remind assignees on stale
issues, and release issues whose assignees never respond.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, false)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Add status flags to root command so `cookiewatch` and
	// `cookiewatch status` work identically
	addStatusFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdSweep(&Options{}))
	rootCmd.AddCommand(NewCmdWatch(&Options{}))
	rootCmd.AddCommand(NewCmdStatus(&Options{}))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdRateLimit())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}
