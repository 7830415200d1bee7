package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/config"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[monitor]\ninterval_seconds = 60\n")

	changed := make(chan *config.Config, 1)
	w, err := Watch(path, func(cfg *config.Config) {
		select {
		case changed <- cfg:
		default:
		}
	}, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeConfig(t, path, "[monitor]\ninterval_seconds = 5\n")

	select {
	case cfg := <-changed:
		if cfg.Monitor.IntervalSeconds != 5 {
			t.Errorf("interval = %d, want 5", cfg.Monitor.IntervalSeconds)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within timeout")
	}
}

func TestWatchSkipsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[monitor]\ninterval_seconds = 60\n")

	changed := make(chan *config.Config, 1)
	errs := make(chan error, 1)
	w, err := Watch(path,
		func(cfg *config.Config) { changed <- cfg },
		WithDebounce(20*time.Millisecond),
		WithErrorHandler(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeConfig(t, path, "[monitor\nbroken")

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected load error")
		}
	case cfg := <-changed:
		t.Fatalf("invalid config was delivered: %+v", cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("no error within timeout")
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[monitor]\ninterval_seconds = 60\n")

	changed := make(chan *config.Config, 1)
	w, err := Watch(path, func(cfg *config.Config) { changed <- cfg }, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeConfig(t, filepath.Join(dir, "other.toml"), "irrelevant = true\n")

	select {
	case <-changed:
		t.Fatal("sibling file change triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[monitor]\ninterval_seconds = 60\n")

	w, err := Watch(path, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	// Double close is safe.
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
