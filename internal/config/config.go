// Package config provides loading and validation of the agent configuration
// file. The loaded Config is an immutable snapshot: the engine never re-reads
// it mid-cycle.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultPath is where the agent looks for its configuration when --config
// is not given.
const DefaultPath = "config.json"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// OllamaConfig configures the optional conflict-analysis collaborator. Any
// OpenAI-compatible chat-completions server works; base_url points at it.
type OllamaConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Model   string `json:"model" validate:"required_if=Enabled true"`
	Timeout int    `json:"timeout" validate:"gte=0"`
}

// RequestTimeout returns the analysis request timeout.
func (o OllamaConfig) RequestTimeout() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}

// Config is the agent configuration. Durations are seconds; file paths are
// resolved relative to RepoPath unless absolute.
type Config struct {
	RepoPath          string            `json:"repo_path" validate:"required"`
	SourceBranch      string            `json:"source_branch" validate:"required"`
	TargetBranch      string            `json:"target_branch" validate:"required"`
	MatchMode         string            `json:"match_mode" validate:"omitempty,oneof=all any"`
	MatchPatterns     map[string]string `json:"match_patterns"`
	CheckInterval     int               `json:"check_interval" validate:"gt=0"`
	CommandTimeout    int               `json:"command_timeout" validate:"gt=0"`
	StartRevision     int64             `json:"start_revision" validate:"gte=0"`
	LogFile           string            `json:"log_file"`
	CursorFile        string            `json:"cursor_file" validate:"required"`
	JournalFile       string            `json:"journal_file"`
	HookSignalFile    string            `json:"hook_signal_file"`
	MergeRequestsFile string            `json:"merge_requests_file"`
	Ollama            OllamaConfig      `json:"ollama"`
}

// Default returns the configuration defaults. Load applies these before
// validation so a minimal config file works.
func Default() *Config {
	return &Config{
		RepoPath:          ".",
		MatchMode:         "all",
		CheckInterval:     300,
		CommandTimeout:    300,
		LogFile:           "logs/merge.log",
		CursorFile:        "logs/last_revision.txt",
		JournalFile:       "logs/journal.db",
		HookSignalFile:    "logs/hook_signal.txt",
		MergeRequestsFile: "logs/merge_requests.json",
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5-coder",
			Timeout: 30,
		},
	}
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Callers can test for errors.Is(err, os.ErrNotExist) to offer
			// creating a starter config.
			return nil, fmt.Errorf("config file not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	configJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, append(configJSON, '\n'), 0o600)
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if c.RepoPath == "" {
		c.RepoPath = defaults.RepoPath
	}
	if c.MatchMode == "" {
		c.MatchMode = defaults.MatchMode
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = defaults.CheckInterval
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = defaults.CommandTimeout
	}
	if c.LogFile == "" {
		c.LogFile = defaults.LogFile
	}
	if c.CursorFile == "" {
		c.CursorFile = defaults.CursorFile
	}
	if c.JournalFile == "" {
		c.JournalFile = defaults.JournalFile
	}
	if c.HookSignalFile == "" {
		c.HookSignalFile = defaults.HookSignalFile
	}
	if c.MergeRequestsFile == "" {
		c.MergeRequestsFile = defaults.MergeRequestsFile
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaults.Ollama.BaseURL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaults.Ollama.Model
	}
	if c.Ollama.Timeout == 0 {
		c.Ollama.Timeout = defaults.Ollama.Timeout
	}
}

// Validate checks field constraints and compiles every match pattern so a
// bad rule fails at load time, not mid-cycle.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for name, pattern := range c.MatchPatterns {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("match pattern %q does not compile: %w", name, err)
		}
	}
	return nil
}

// PollInterval returns the schedule-mode poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// SVNTimeout returns the per-command timeout for svn invocations.
func (c *Config) SVNTimeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// ResolvePath resolves a configured file path against the working copy root.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.RepoPath, path)
}
