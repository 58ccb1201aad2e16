// Package config loads cookiewatch configuration from YAML with
// compiled-in defaults. A global file under the user config directory is
// merged with a local .cookiewatch.yaml; local values take precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Repos lists the repositories to track, as "owner/name".
	Repos []string `yaml:"repos,omitempty"`

	// Top-level config sections
	Sweep    *SweepOverrides   `yaml:"sweep,omitempty"`
	Scoring  *ScoringOverrides `yaml:"scoring,omitempty"`
	Reminder *ReminderOverride `yaml:"reminder,omitempty"`
}

// SweepOverrides allows customizing the detection cadence and limits.
type SweepOverrides struct {
	IntervalHours     *int `yaml:"interval_hours,omitempty"`
	StaleAfterDays    *int `yaml:"stale_after_days,omitempty"`
	ReminderGraceDays *int `yaml:"reminder_grace_days,omitempty"`
	Workers           *int `yaml:"workers,omitempty"`
	BudgetMinutes     *int `yaml:"budget_minutes,omitempty"`
	MaxAttempts       *int `yaml:"max_attempts,omitempty"`
	APIBudget         *int `yaml:"api_budget,omitempty"`
}

// ScoringOverrides allows customizing trust score weights.
type ScoringOverrides struct {
	Push              *float64 `yaml:"push,omitempty"`
	PullRequest       *float64 `yaml:"pull_request,omitempty"`
	IssueComment      *float64 `yaml:"issue_comment,omitempty"`
	InactivityPenalty *float64 `yaml:"inactivity_penalty,omitempty"`
	RecentWindowDays  *int     `yaml:"recent_window_days,omitempty"`
	EventWindow       *int     `yaml:"event_window,omitempty"`
}

// ReminderOverride allows customizing the reminder comment template.
type ReminderOverride struct {
	Template *string `yaml:"template,omitempty"`
}

// Settings is the complete resolved configuration used by the engine.
type Settings struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
	ReminderGrace time.Duration
	Workers       int
	SweepBudget   time.Duration
	MaxAttempts   int
	APIBudget     int

	PushWeight         float64
	PullRequestWeight  float64
	IssueCommentWeight float64
	InactivityPenalty  float64
	RecentWindow       time.Duration
	EventWindow        int

	ReminderTemplate string
}

// DefaultReminderTemplate is the comment posted on stale issues.
// {assignee} is replaced with the assignee's login.
const DefaultReminderTemplate = "Hi @{assignee}, are you still working on this? 👋\n\n" +
	"This is a friendly reminder that you were assigned to this issue. " +
	"If you need any help or would like to unassign yourself, please let us know!"

// DefaultSettings returns the default engine settings
func DefaultSettings() Settings {
	return Settings{
		SweepInterval: 24 * time.Hour,
		StaleAfter:    7 * 24 * time.Hour,
		ReminderGrace: 3 * 24 * time.Hour,
		Workers:       8,
		SweepBudget:   30 * time.Minute,
		MaxAttempts:   4,
		APIBudget:     400,

		PushWeight:         3,
		PullRequestWeight:  2,
		IssueCommentWeight: 2,
		InactivityPenalty:  3,
		RecentWindow:       7 * 24 * time.Hour,
		EventWindow:        10,

		ReminderTemplate: DefaultReminderTemplate,
	}
}

// GetSettings returns engine settings with user overrides merged with defaults
func (c *Config) GetSettings() Settings {
	s := DefaultSettings()

	if c.Sweep != nil {
		sw := c.Sweep
		if sw.IntervalHours != nil {
			s.SweepInterval = time.Duration(*sw.IntervalHours) * time.Hour
		}
		if sw.StaleAfterDays != nil {
			s.StaleAfter = time.Duration(*sw.StaleAfterDays) * 24 * time.Hour
		}
		if sw.ReminderGraceDays != nil {
			s.ReminderGrace = time.Duration(*sw.ReminderGraceDays) * 24 * time.Hour
		}
		if sw.Workers != nil {
			s.Workers = *sw.Workers
		}
		if sw.BudgetMinutes != nil {
			s.SweepBudget = time.Duration(*sw.BudgetMinutes) * time.Minute
		}
		if sw.MaxAttempts != nil {
			s.MaxAttempts = *sw.MaxAttempts
		}
		if sw.APIBudget != nil {
			s.APIBudget = *sw.APIBudget
		}
	}

	if c.Scoring != nil {
		sc := c.Scoring
		if sc.Push != nil {
			s.PushWeight = *sc.Push
		}
		if sc.PullRequest != nil {
			s.PullRequestWeight = *sc.PullRequest
		}
		if sc.IssueComment != nil {
			s.IssueCommentWeight = *sc.IssueComment
		}
		if sc.InactivityPenalty != nil {
			s.InactivityPenalty = *sc.InactivityPenalty
		}
		if sc.RecentWindowDays != nil {
			s.RecentWindow = time.Duration(*sc.RecentWindowDays) * 24 * time.Hour
		}
		if sc.EventWindow != nil {
			s.EventWindow = *sc.EventWindow
		}
	}

	if c.Reminder != nil && c.Reminder.Template != nil {
		s.ReminderTemplate = *c.Reminder.Template
	}

	return s
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".cookiewatch"
	}
	return filepath.Join(configDir, "cookiewatch")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".cookiewatch.yaml"
}

// ConfigFileExists returns true if the config file exists on disk
func ConfigFileExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Load loads the configuration from disk.
// It first loads the global config from the XDG config directory, then merges
// any local .cookiewatch.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	cfg := &Config{}

	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}

		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}

		cfg = mergeConfig(cfg, &localCfg)
	}

	return cfg, nil
}

// GetGitHubToken returns the GitHub token from the GITHUB_TOKEN environment
// variable. The token is never written to the config file.
func (c *Config) GetGitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{}

	// Merge arrays (local replaces if non-empty)
	if len(local.Repos) > 0 {
		result.Repos = local.Repos
	} else {
		result.Repos = global.Repos
	}

	result.Sweep = mergeSweep(global.Sweep, local.Sweep)
	result.Scoring = mergeScoring(global.Scoring, local.Scoring)
	result.Reminder = mergeReminder(global.Reminder, local.Reminder)

	return result
}

func mergeSweep(global, local *SweepOverrides) *SweepOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &SweepOverrides{}

	if global != nil {
		*result = *global
	}

	if local != nil {
		if local.IntervalHours != nil {
			result.IntervalHours = local.IntervalHours
		}
		if local.StaleAfterDays != nil {
			result.StaleAfterDays = local.StaleAfterDays
		}
		if local.ReminderGraceDays != nil {
			result.ReminderGraceDays = local.ReminderGraceDays
		}
		if local.Workers != nil {
			result.Workers = local.Workers
		}
		if local.BudgetMinutes != nil {
			result.BudgetMinutes = local.BudgetMinutes
		}
		if local.MaxAttempts != nil {
			result.MaxAttempts = local.MaxAttempts
		}
		if local.APIBudget != nil {
			result.APIBudget = local.APIBudget
		}
	}

	return result
}

func mergeScoring(global, local *ScoringOverrides) *ScoringOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &ScoringOverrides{}

	if global != nil {
		*result = *global
	}

	if local != nil {
		if local.Push != nil {
			result.Push = local.Push
		}
		if local.PullRequest != nil {
			result.PullRequest = local.PullRequest
		}
		if local.IssueComment != nil {
			result.IssueComment = local.IssueComment
		}
		if local.InactivityPenalty != nil {
			result.InactivityPenalty = local.InactivityPenalty
		}
		if local.RecentWindowDays != nil {
			result.RecentWindowDays = local.RecentWindowDays
		}
		if local.EventWindow != nil {
			result.EventWindow = local.EventWindow
		}
	}

	return result
}

func mergeReminder(global, local *ReminderOverride) *ReminderOverride {
	if global == nil && local == nil {
		return nil
	}
	result := &ReminderOverride{}

	if global != nil {
		*result = *global
	}

	if local != nil && local.Template != nil {
		result.Template = local.Template
	}

	return result
}
