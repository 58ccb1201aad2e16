package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cookiewatch/cookiewatch/config"
	"github.com/cookiewatch/cookiewatch/internal/gateway"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit() *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit",
		Short: "Check GitHub API rate limit status",
		Long:  `Display current GitHub API rate limit status including remaining quota and reset time.`,
		RunE:  runRateLimit,
	}
}

func runRateLimit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token := cfg.GetGitHubToken()
	if token == "" {
		return fmt.Errorf("GitHub token not configured. Set the GITHUB_TOKEN environment variable")
	}

	ctx := cmd.Context()
	client, err := gateway.NewClient(ctx, token, gateway.NewBudget(cfg.GetSettings().APIBudget))
	if err != nil {
		return err
	}

	limits, err := client.RateLimits(ctx)
	if err != nil {
		return fmt.Errorf("failed to get rate limits: %w", err)
	}

	fmt.Println("GitHub API Rate Limits:")
	fmt.Println()

	if limits.Core != nil {
		resetIn := time.Until(limits.Core.Reset.Time).Round(time.Second)
		if resetIn < 0 {
			resetIn = 0
		}
		fmt.Printf("Core API: %d/%d remaining (resets in %s)\n",
			limits.Core.Remaining, limits.Core.Limit, resetIn)
	}

	fmt.Printf("Sweep budget: %d calls per sweep\n", cfg.GetSettings().APIBudget)

	return nil
}
