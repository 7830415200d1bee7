package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Monitor.IntervalSeconds != 60 {
		t.Errorf("interval = %d", cfg.Monitor.IntervalSeconds)
	}
	if cfg.Monitor.Mode != "interactive" {
		t.Errorf("mode = %q", cfg.Monitor.Mode)
	}
	if cfg.Classifier.Model == "" || cfg.Classifier.APIBase == "" {
		t.Error("classifier defaults missing")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.IntervalSeconds != 60 {
		t.Errorf("interval = %d", cfg.Monitor.IntervalSeconds)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[monitor]
interval_seconds = 15
confirm = true
workers = 4
mode = "unattended"

[classifier]
model = "local-model"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.IntervalSeconds != 15 || !cfg.Monitor.Confirm || cfg.Monitor.Workers != 4 {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Monitor.Interval() != 15*time.Second {
		t.Errorf("Interval() = %s", cfg.Monitor.Interval())
	}
	if cfg.Classifier.Model != "local-model" {
		t.Errorf("model = %q", cfg.Classifier.Model)
	}
	// Fields the file omits keep their defaults.
	if cfg.Tmux.CaptureLines != 100 {
		t.Errorf("capture_lines = %d", cfg.Tmux.CaptureLines)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"bad interval", "[monitor]\ninterval_seconds = 0\n", "interval_seconds"},
		{"bad mode", "[monitor]\nmode = \"relaxed\"\n", "monitor.mode"},
		{"bad temperature", "[classifier]\ntemperature = 9.0\n", "temperature"},
		{"malformed toml", "[monitor\n", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.toml), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWARMKEEP_API_KEY", "env-key")
	t.Setenv("SWARMKEEP_MODEL", "env-model")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Classifier.APIKey != "env-key" {
		t.Errorf("APIKey = %q", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.Model != "env-model" {
		t.Errorf("Model = %q", cfg.Classifier.Model)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("SWARMKEEP_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Classifier.APIKey != "openai-key" {
		t.Errorf("APIKey = %q", cfg.Classifier.APIKey)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Monitor.IntervalSeconds = 30
	cfg.Classifier.APIKey = "secret"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Monitor.IntervalSeconds != 30 || loaded.Classifier.APIKey != "secret" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
}

func TestDefaultPathEnv(t *testing.T) {
	t.Setenv("SWARMKEEP_CONFIG", "/etc/swarmkeep/custom.toml")
	if got := DefaultPath(); got != "/etc/swarmkeep/custom.toml" {
		t.Errorf("DefaultPath = %q", got)
	}

	t.Setenv("SWARMKEEP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "swarmkeep", "config.toml") {
		t.Errorf("DefaultPath = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/x"); got != "/abs/x" {
		t.Errorf("ExpandHome = %q", got)
	}
}
