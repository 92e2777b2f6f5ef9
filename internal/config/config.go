// Package config handles configuration loading and management for Loom.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// Config holds all configuration for Loom.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Planner   PlannerConfig   `mapstructure:"planner" yaml:"planner"`
}

// AnthropicConfig holds model backend settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Model      string `mapstructure:"model" yaml:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"`
}

// RunConfig holds per-run execution settings.
type RunConfig struct {
	// MaxToolRounds caps the tool-call loop per subtask.
	MaxToolRounds int `mapstructure:"max_tool_rounds" yaml:"max_tool_rounds"`
	// EventBuffer sizes the progress event channel.
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
	// DebugLog enables the file-backed run log under .loom/logs.
	DebugLog bool `mapstructure:"debug_log" yaml:"debug_log"`
}

// WorkspaceConfig holds workspace collaborator settings.
type WorkspaceConfig struct {
	// AutoApprove applies file writes without prompting.
	AutoApprove bool `mapstructure:"auto_approve" yaml:"auto_approve"`
	// CommandTimeout bounds runCommand executions.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	// MaxOutputBytes truncates tool output beyond this size.
	MaxOutputBytes int `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	// Watch enables staleness detection for pending changes.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// PlannerConfig holds planning strategy settings.
type PlannerConfig struct {
	// Mode is "classify" or "decompose".
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, LOOM_*)
// 2. Project config (.loom.yaml in current directory or a parent)
// 3. User config (~/.config/loom/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "LOOM_MODEL")
	v.BindEnv("anthropic.use_bedrock", "LOOM_USE_BEDROCK")
	v.BindEnv("planner.mode", "LOOM_PLANNER_MODE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// WriteDefault writes a default config file to path, creating parent
// directories as needed. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("run.max_tool_rounds", 10)
	v.SetDefault("run.event_buffer", 64)
	v.SetDefault("run.debug_log", false)

	v.SetDefault("workspace.auto_approve", false)
	v.SetDefault("workspace.command_timeout", "2m")
	v.SetDefault("workspace.max_output_bytes", 30000)
	v.SetDefault("workspace.watch", true)

	v.SetDefault("planner.mode", "classify")
}

// getUserConfigDir returns the XDG config directory for Loom.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "loom")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "loom")
	}
	return filepath.Join(home, ".config", "loom")
}

// findProjectConfig searches for .loom.yaml in the current directory and
// its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".loom.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Run: RunConfig{
			MaxToolRounds: 10,
			EventBuffer:   64,
		},
		Workspace: WorkspaceConfig{
			CommandTimeout: 2 * time.Minute,
			MaxOutputBytes: 30000,
			Watch:          true,
		},
		Planner: PlannerConfig{
			Mode: "classify",
		},
	}
}
