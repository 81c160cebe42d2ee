// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/deskchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete deskchat configuration.
type Config struct {
	Storage  StorageConfig  `toml:"storage" envPrefix:"STORAGE_"`
	Agent    AgentConfig    `toml:"agent" envPrefix:"AGENT_"`
	Search   SearchConfig   `toml:"search" envPrefix:"SEARCH_"`
	Capture  CaptureConfig  `toml:"capture" envPrefix:"CAPTURE_"`
	Dispatch DispatchConfig `toml:"dispatch" envPrefix:"DISPATCH_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	UI       UIConfig       `toml:"ui" envPrefix:"UI_"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// StorageConfig locates the chat database.
type StorageConfig struct {
	// Path of the SQLite file; relative paths resolve against the config dir.
	Path string `toml:"path" env:"PATH"`
}

// AgentConfig selects and tunes the language-model provider.
type AgentConfig struct {
	// Provider is one of: gigachat, openrouter, ollama, openai, anthropic, gemini
	Provider string `toml:"provider" env:"PROVIDER"`
	// Model overrides the provider's default model
	Model string `toml:"model" env:"MODEL"`
	// BaseURL overrides the provider endpoint (ollama, openrouter, gigachat, openai)
	BaseURL string `toml:"base_url" env:"BASE_URL"`
	// SystemPrompt is prepended to every turn when set
	SystemPrompt string `toml:"system_prompt" env:"SYSTEM_PROMPT"`
	// TimeoutSecs bounds one respond call including tool rounds
	TimeoutSecs int `toml:"timeout_secs" env:"TIMEOUT_SECS"`
	// MaxSteps bounds model calls per turn in the tool loop
	MaxSteps int `toml:"max_steps" env:"MAX_STEPS"`
	// InsecureTLS disables certificate verification (GigaChat's endpoints
	// use a CA missing from most trust stores)
	InsecureTLS bool `toml:"insecure_tls" env:"INSECURE_TLS"`

	// Credentials are resolved at startup and never written to config.toml.
	Credentials string `toml:"-"`
}

// Timeout returns TimeoutSecs as a duration.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// SearchConfig controls the web search tool.
type SearchConfig struct {
	Enabled    bool `toml:"enabled" env:"ENABLED"`
	MaxResults int  `toml:"max_results" env:"MAX_RESULTS"`
	// PerMinute caps outgoing search requests
	PerMinute int `toml:"per_minute" env:"PER_MINUTE"`
}

// CaptureConfig controls screenshot capture.
type CaptureConfig struct {
	// Command is the argv of a program that writes a PNG to stdout.
	// Empty selects the platform default.
	Command []string `toml:"command" env:"COMMAND" envSeparator:" "`
}

// DispatchConfig tunes background turn execution.
type DispatchConfig struct {
	// MaxConcurrent caps agent calls running at once across all chats
	MaxConcurrent int `toml:"max_concurrent" env:"MAX_CONCURRENT"`
}

// LogConfig configures the structured log file.
type LogConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `toml:"level" env:"LEVEL"`
	// File is the log path; relative paths resolve against the config dir
	File string `toml:"file" env:"FILE"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Markdown renders agent replies with glamour
	Markdown bool `toml:"markdown" env:"MARKDOWN"`
	// NoColor forces a colorless terminal profile
	NoColor bool `toml:"no_color" env:"NO_COLOR"`
}

// Providers lists the supported agent providers.
var Providers = []string{"gigachat", "openrouter", "ollama", "openai", "anthropic", "gemini"}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: "chat.db",
		},
		Agent: AgentConfig{
			Provider:    "gigachat",
			TimeoutSecs: 120,
			MaxSteps:    8,
		},
		Search: SearchConfig{
			Enabled:    true,
			MaxResults: 5,
			PerMinute:  20,
		},
		Dispatch: DispatchConfig{
			MaxConcurrent: 4,
		},
		Log: LogConfig{
			Level: "info",
			File:  "deskchat.log",
		},
		UI: UIConfig{
			Markdown: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the deskchat configuration directory. DESKCHAT_HOME wins over
// ~/.deskchat.
func Dir() (string, error) {
	if home := os.Getenv("DESKCHAT_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".deskchat"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir creates the configuration directory with owner-only permissions.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// resolve makes p absolute relative to c.dir.
func (c *Config) resolve(p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// DatabasePath returns the absolute path of the chat database.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Storage.Path)
}

// LogPath returns the absolute path of the log file.
func (c *Config) LogPath() string {
	return c.resolve(c.Log.File)
}

// DotEnvPath returns the .env file credentials are persisted to.
func (c *Config) DotEnvPath() string {
	return c.resolve(".env")
}

// HistoryPath returns the REPL input history file.
func (c *Config) HistoryPath() string {
	return c.resolve("repl_history")
}

// Directory returns the directory relative paths resolve against.
func (c *Config) Directory() string {
	return c.dir
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads config.toml from Dir (if present), applies DESKCHAT_*
// environment overrides, fills defaults and validates.
func Load() (*Config, error) {
	path, err := PathTOML()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file. A missing file
// is not an error: defaults and environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	cfg.dir = filepath.Dir(path)

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// their current values. Unknown keys are rejected so typos surface early.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// fillDefaults replaces zero values that can never be meaningful.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaults.Storage.Path
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = defaults.Agent.Provider
	}
	cfg.Agent.Provider = strings.ToLower(strings.TrimSpace(cfg.Agent.Provider))
	if cfg.Agent.TimeoutSecs == 0 {
		cfg.Agent.TimeoutSecs = defaults.Agent.TimeoutSecs
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = defaults.Agent.MaxSteps
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = defaults.Search.MaxResults
	}
	if cfg.Dispatch.MaxConcurrent == 0 {
		cfg.Dispatch.MaxConcurrent = defaults.Dispatch.MaxConcurrent
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.File == "" {
		cfg.Log.File = defaults.Log.File
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# deskchat configuration file\n")
	buf.WriteString("# Credentials live in .env next to this file, never here.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, ValidationError{Field: "storage.path", Message: "must not be empty"})
	}

	if !isProvider(c.Agent.Provider) {
		errs = append(errs, ValidationError{
			Field:   "agent.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: %s", c.Agent.Provider, strings.Join(Providers, ", ")),
		})
	}
	if c.Agent.BaseURL != "" {
		if u, err := url.Parse(c.Agent.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: "agent.base_url", Message: fmt.Sprintf("invalid URL '%s'", c.Agent.BaseURL)})
		}
	}
	if c.Agent.TimeoutSecs < 1 || c.Agent.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{Field: "agent.timeout_secs", Message: "must be between 1 and 3600"})
	}
	if c.Agent.MaxSteps < 1 || c.Agent.MaxSteps > 50 {
		errs = append(errs, ValidationError{Field: "agent.max_steps", Message: "must be between 1 and 50"})
	}

	if c.Search.MaxResults < 1 || c.Search.MaxResults > 10 {
		errs = append(errs, ValidationError{Field: "search.max_results", Message: "must be between 1 and 10"})
	}
	if c.Search.PerMinute < 0 {
		errs = append(errs, ValidationError{Field: "search.per_minute", Message: "must not be negative"})
	}

	if c.Dispatch.MaxConcurrent < 1 || c.Dispatch.MaxConcurrent > 64 {
		errs = append(errs, ValidationError{Field: "dispatch.max_concurrent", Message: "must be between 1 and 64"})
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}
