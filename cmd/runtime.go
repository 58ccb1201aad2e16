package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cookiewatch/cookiewatch/config"
	"github.com/cookiewatch/cookiewatch/internal/dispatch"
	"github.com/cookiewatch/cookiewatch/internal/gateway"
	"github.com/cookiewatch/cookiewatch/internal/log"
	"github.com/cookiewatch/cookiewatch/internal/store"
	"github.com/cookiewatch/cookiewatch/internal/sweep"
)

// runtime bundles the wired engine components for the sweep commands.
type runtime struct {
	cfg       *config.Config
	settings  config.Settings
	store     *store.Store
	client    *gateway.Client
	scheduler *sweep.Scheduler
}

// setupRuntime loads config, opens the state store, authenticates against
// GitHub, and wires the sweep pipeline.
func setupRuntime(ctx context.Context, opts *Options) (*runtime, error) {
	log.Initialize(opts.Verbosity, os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	settings := cfg.GetSettings()
	if opts.Workers > 0 {
		settings.Workers = opts.Workers
	}

	repos := cfg.Repos
	if len(opts.Repos) > 0 {
		repos = opts.Repos
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories configured. Add repos to %s or pass --repo", config.ConfigPath())
	}

	st, err := store.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	budget := gateway.NewBudget(settings.APIBudget)
	client, err := gateway.NewClient(ctx, cfg.GetGitHubToken(), budget)
	if err != nil {
		return nil, err
	}

	login, err := client.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify GitHub credentials: %w", err)
	}
	log.Debug("authenticated", "login", login)

	dispatcher := dispatch.New(client, st, settings.MaxAttempts)
	engine := sweep.NewEngine(client, st, dispatcher, login, repos, settings)
	scheduler := sweep.NewScheduler(engine, settings.SweepInterval, settings.SweepBudget)

	return &runtime{
		cfg:       cfg,
		settings:  settings,
		store:     st,
		client:    client,
		scheduler: scheduler,
	}, nil
}

// openStore opens the state store without touching the network; used by
// read-only commands.
func openStore(opts *Options) (*store.Store, error) {
	log.Initialize(opts.Verbosity, os.Stderr)

	st, err := store.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return st, nil
}
