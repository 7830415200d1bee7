package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/swarmkeep/swarmkeep/internal/classifier"
	"github.com/swarmkeep/swarmkeep/internal/config"
	"github.com/swarmkeep/swarmkeep/internal/monitor"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
)

// newTerminal builds the tmux adapter from config.
func newTerminal(cfg *config.Config) *tmux.Adapter {
	return &tmux.Adapter{
		Timeout:      cfg.Tmux.CommandTimeout(),
		CaptureLines: cfg.Tmux.CaptureLines,
	}
}

// newClassifier selects the chat classifier when an API key is configured
// and falls back to the offline heuristics otherwise.
func newClassifier(cfg *config.Config) classifier.Classifier {
	if cfg.Classifier.APIKey == "" {
		slog.Debug("no API key configured, using heuristic classifier")
		return classifier.NewRules()
	}
	c := classifier.NewChatClassifier(cfg.Classifier.APIBase, cfg.Classifier.APIKey, cfg.Classifier.Model)
	c.Temperature = cfg.Classifier.Temperature
	c.Timeout = cfg.Classifier.Timeout()
	if cfg.Classifier.MaxRetries >= 0 {
		c.MaxRetries = uint64(cfg.Classifier.MaxRetries)
	}
	return c
}

// openRegistry loads the session registry. A corrupt file is reported and
// replaced with an empty registry rather than aborting the command.
func openRegistry() (*registry.Store, *registry.Registry, error) {
	store := registry.NewStore("")
	reg, err := store.Load()
	if err != nil {
		if errors.Is(err, registry.ErrCorrupt) {
			slog.Warn("registry file is corrupt, starting fresh", "path", store.Path(), "err", err)
			return store, reg, nil
		}
		return nil, nil, fmt.Errorf("loading registry: %w", err)
	}
	return store, reg, nil
}

// newCycle assembles the monitoring cycle from config.
func newCycle(cfg *config.Config, store *registry.Store) *monitor.Cycle {
	return &monitor.Cycle{
		Monitor: monitor.New(newTerminal(cfg), newClassifier(cfg), cfg.Monitor.MaxChecks),
		Store:   store,
		Mode:    status.Mode(cfg.Monitor.Mode),
		Workers: cfg.Monitor.Workers,
	}
}
