// Package config loads and persists swarmkeep's TOML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/swarmkeep/swarmkeep/internal/notify"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

// Config is the main configuration, stored at ~/.config/swarmkeep/config.toml.
type Config struct {
	Classifier    ClassifierConfig `toml:"classifier"`
	Monitor       MonitorConfig    `toml:"monitor"`
	Tmux          TmuxConfig       `toml:"tmux"`
	Notifications notify.Config    `toml:"notifications"`
}

// ClassifierConfig points at an OpenAI-compatible chat-completions endpoint.
// An empty APIKey selects the offline heuristic classifier instead.
type ClassifierConfig struct {
	APIBase        string  `toml:"api_base"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

// Timeout returns the classification deadline as a duration.
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MonitorConfig controls the watch loop.
type MonitorConfig struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	Confirm         bool   `toml:"confirm"`
	MaxChecks       int    `toml:"max_checks"`
	Workers         int    `toml:"workers"`
	Mode            string `toml:"mode"`
}

// Interval returns the delay between cycles as a duration.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// TmuxConfig bounds the tmux command wrapper.
type TmuxConfig struct {
	CaptureLines          int `toml:"capture_lines"`
	CommandTimeoutSeconds int `toml:"command_timeout_seconds"`
}

// CommandTimeout returns the per-command tmux deadline.
func (c TmuxConfig) CommandTimeout() time.Duration {
	if c.CommandTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		Monitor: MonitorConfig{
			IntervalSeconds: 60,
			MaxChecks:       registry.DefaultMaxChecks,
			Workers:         1,
			Mode:            string(status.ModeInteractive),
		},
		Tmux: TmuxConfig{
			CaptureLines:          100,
			CommandTimeoutSeconds: 10,
		},
		Notifications: notify.DefaultConfig(),
	}
}

// DefaultPath returns the config file location: $SWARMKEEP_CONFIG, then
// $XDG_CONFIG_HOME/swarmkeep/config.toml, then ~/.config/swarmkeep/config.toml.
func DefaultPath() string {
	if env := os.Getenv("SWARMKEEP_CONFIG"); env != "" {
		return ExpandHome(env)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swarmkeep", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "swarmkeep", "config.toml")
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads the config at path (DefaultPath when empty). Precedence is
// environment over file over defaults; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("SWARMKEEP_API_KEY"); key != "" {
		cfg.Classifier.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Classifier.APIKey == "" {
		cfg.Classifier.APIKey = key
	}
	if base := os.Getenv("SWARMKEEP_API_BASE"); base != "" {
		cfg.Classifier.APIBase = base
	}
	if model := os.Getenv("SWARMKEEP_MODEL"); model != "" {
		cfg.Classifier.Model = model
	}
}

// Validate rejects configurations the loop cannot run with.
func (c *Config) Validate() error {
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.interval_seconds must be positive, got %d", c.Monitor.IntervalSeconds)
	}
	if c.Monitor.Workers < 0 {
		return fmt.Errorf("monitor.workers must be >= 0, got %d", c.Monitor.Workers)
	}
	if c.Monitor.MaxChecks < 0 {
		return fmt.Errorf("monitor.max_checks must be >= 0, got %d", c.Monitor.MaxChecks)
	}
	switch status.Mode(c.Monitor.Mode) {
	case status.ModeInteractive, status.ModeUnattended:
	default:
		return fmt.Errorf("monitor.mode must be %q or %q, got %q",
			status.ModeInteractive, status.ModeUnattended, c.Monitor.Mode)
	}
	if c.Classifier.Temperature < 0 || c.Classifier.Temperature > 2 {
		return fmt.Errorf("classifier.temperature must be in [0, 2], got %v", c.Classifier.Temperature)
	}
	if c.Tmux.CaptureLines <= 0 {
		return fmt.Errorf("tmux.capture_lines must be positive, got %d", c.Tmux.CaptureLines)
	}
	return nil
}

// Save writes the config atomically. 0600 because the file may hold an API
// key.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}
