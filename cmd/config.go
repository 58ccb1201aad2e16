package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cookiewatch/cookiewatch/config"
)

// NewCmdConfig creates the config command with subcommands.
func NewCmdConfig() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		Long: `Show or manage configuration.

When run without arguments, shows the current merged configuration.

Subcommands:
  init  Create a starter config file
  path  Show config file locations
  show  Show current merged config (same as bare 'cookiewatch config')`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format (yaml, json)")

	cmd.AddCommand(NewCmdConfigInit())
	cmd.AddCommand(NewCmdConfigPath())
	cmd.AddCommand(NewCmdConfigShow())

	return cmd
}

// NewCmdConfigInit creates the config init subcommand.
func NewCmdConfigInit() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter config file",
		Long: `Create a starter config file with the repositories to track.

By default the file is created globally under the user config directory.
Use --local to create ./.cookiewatch.yaml instead (applies only in this
directory).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(local)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Create local config file (./.cookiewatch.yaml)")

	return cmd
}

// NewCmdConfigPath creates the config path subcommand.
func NewCmdConfigPath() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file locations",
		Long:  `Show the paths to global and local config files and indicate which exist.`,
		RunE:  runConfigPath,
	}
}

// NewCmdConfigShow creates the config show subcommand.
func NewCmdConfigShow() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current merged configuration",
		Long:  `Show the current configuration after merging defaults, global, and local configs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format (yaml, json)")

	return cmd
}

const starterConfig = `# cookiewatch configuration
# Repositories to track, as owner/name.
repos:
  - owner/repo

# sweep:
#   interval_hours: 24
#   stale_after_days: 7
#   reminder_grace_days: 3

# scoring:
#   push: 3
#   pull_request: 2
#   issue_comment: 2

# reminder:
#   template: "Hi @{assignee}, still working on this?"
`

func runConfigInit(local bool) error {
	targetPath := config.ConfigPath()
	location := "global"
	if local {
		targetPath = config.LocalConfigPath()
		location = "local"
	}

	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'cookiewatch config show' to view current config", targetPath)
	}

	if dir := filepath.Dir(targetPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(targetPath, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created %s config file: %s\n\n", location, targetPath)
	fmt.Println("Edit this file to list the repositories to track.")

	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	fmt.Println("Configuration file locations:")
	fmt.Println()

	globalStatus := "not found"
	if config.ConfigFileExists() {
		globalStatus = "exists"
	}
	fmt.Printf("  Global: %s (%s)\n", config.ConfigPath(), globalStatus)

	localStatus := "not found"
	if _, err := os.Stat(config.LocalConfigPath()); err == nil {
		localStatus = "exists"
	}
	fmt.Printf("  Local:  %s (%s)\n", config.LocalConfigPath(), localStatus)

	fmt.Println()
	fmt.Println("Load order: defaults -> global -> local (local overrides global)")

	return nil
}

func runConfigShow(format string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Print(string(data))
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
	}

	return nil
}
