// Package config loads workspace-level defaults for agentcore runs from
// .agentcore/config.yaml using viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/daydemir/agentcore/internal/types"
)

// Config represents the agentcore workspace configuration.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm"`
	Run          RunConfig          `mapstructure:"run"`
	Verification VerificationConfig `mapstructure:"verification"`
}

// LLMConfig contains model backend settings.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

// RunConfig supplies the RunRequest fields that aren't passed per-invocation.
type RunConfig struct {
	ExecutionMode              string `mapstructure:"execution_mode"`
	MaxIterations              int    `mapstructure:"max_iterations"`
	MaxFileWrites              int    `mapstructure:"max_file_writes"`
	MaxCommandRuns             int    `mapstructure:"max_command_runs"`
	TeamSize                   int    `mapstructure:"team_size"`
	StrictVerification         bool   `mapstructure:"strict_verification"`
	AutoFixVerification        bool   `mapstructure:"auto_fix_verification"`
	RollbackOnFailure          bool   `mapstructure:"rollback_on_failure"`
	RunPreflightChecks         bool   `mapstructure:"run_preflight_checks"`
	RequireClarificationBeforeEdits bool `mapstructure:"require_clarification_before_edits"`
	CriticPassThreshold        float64 `mapstructure:"critic_pass_threshold"`
	MaxParallelWorkUnits       int    `mapstructure:"max_parallel_work_units"`
}

// VerificationConfig contains the project's quality-gate commands.
type VerificationConfig struct {
	Commands []CommandConfig `mapstructure:"commands"`
}

// CommandConfig is one verification command as written in YAML.
type CommandConfig struct {
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
}

// ToTypeCommands converts the configured verification commands into the
// Command shape runs are built with.
func (v VerificationConfig) ToTypeCommands() []types.Command {
	out := make([]types.Command, 0, len(v.Commands))
	for _, c := range v.Commands {
		out = append(out, types.Command{Program: c.Program, Args: c.Args})
	}
	return out
}

// Load reads the config from the workspace, falling back to defaults when
// .agentcore/config.yaml is absent.
func Load(workspaceDir string) (*Config, error) {
	configPath := filepath.Join(workspaceDir, ".agentcore", "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns a config with default values, mirroring
// RunRequest.ApplyDefaults so a workspace with no config file behaves the
// same as a request that didn't set any optional field, except that
// RunPreflightChecks defaults to true here and ApplyDefaults leaves it
// false.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL: "http://localhost:8080/v1",
			Model:   "default",
		},
		Run: RunConfig{
			ExecutionMode:        "multi",
			MaxFileWrites:        40,
			MaxCommandRuns:       60,
			TeamSize:             1,
			RunPreflightChecks:   true,
			CriticPassThreshold:  0.70,
			MaxParallelWorkUnits: 3,
		},
		Verification: VerificationConfig{
			Commands: []CommandConfig{},
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaults.LLM.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaults.LLM.Model
	}
	if cfg.Run.ExecutionMode == "" {
		cfg.Run.ExecutionMode = defaults.Run.ExecutionMode
	}
	if cfg.Run.MaxFileWrites == 0 {
		cfg.Run.MaxFileWrites = defaults.Run.MaxFileWrites
	}
	if cfg.Run.MaxCommandRuns == 0 {
		cfg.Run.MaxCommandRuns = defaults.Run.MaxCommandRuns
	}
	if cfg.Run.TeamSize == 0 {
		cfg.Run.TeamSize = defaults.Run.TeamSize
	}
	if cfg.Run.CriticPassThreshold == 0 {
		cfg.Run.CriticPassThreshold = defaults.Run.CriticPassThreshold
	}
	if cfg.Run.MaxParallelWorkUnits == 0 {
		cfg.Run.MaxParallelWorkUnits = defaults.Run.MaxParallelWorkUnits
	}
	if cfg.Verification.Commands == nil {
		cfg.Verification.Commands = defaults.Verification.Commands
	}
}
