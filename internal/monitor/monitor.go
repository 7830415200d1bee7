// Package monitor implements the per-session health check, the cycle that
// sweeps every tracked session, and the watch loop that repeats cycles under
// a bounded-confirmation stop policy.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/classifier"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

// Terminal is the multiplexer surface a monitor consumes. Capture returning
// an empty string is a valid result; absence is reported only via Exists or
// an absence-class Capture error.
type Terminal interface {
	Exists(ctx context.Context, name string) bool
	Capture(ctx context.Context, name string) (string, error)
	Send(ctx context.Context, name, text string) error
}

// Monitor performs single-session health checks.
type Monitor struct {
	term       Terminal
	classifier classifier.Classifier
	maxChecks  int
}

// New creates a session monitor. maxChecks caps each session's stored
// history; zero or less keeps it unbounded.
func New(term Terminal, cls classifier.Classifier, maxChecks int) *Monitor {
	return &Monitor{term: term, classifier: cls, maxChecks: maxChecks}
}

// Observe inspects one session without touching the registry: existence,
// snapshot capture, then classification. It never returns an error; failures
// are encoded in the check's status.
func (m *Monitor) Observe(ctx context.Context, name string) registry.Check {
	now := time.Now().UTC()

	if !m.term.Exists(ctx, name) {
		return registry.Check{Time: now, Status: status.Dead, Log: "session no longer exists"}
	}

	snapshot, err := m.term.Capture(ctx, name)
	if err != nil {
		if tmux.IsAbsenceError(err) {
			return registry.Check{Time: now, Status: status.Dead, Log: "session no longer exists"}
		}
		return registry.Check{
			Time:   now,
			Status: status.Error,
			Log:    util.Truncate(fmt.Sprintf("capture failed: %v", err), 120),
		}
	}

	res := m.classifier.Classify(ctx, snapshot)
	return registry.Check{Time: now, Status: res.Status, Log: res.Log}
}

// CheckOne observes a session and appends the resulting check to its history.
// The caller is responsible for removing sessions whose check came back dead.
func (m *Monitor) CheckOne(ctx context.Context, reg *registry.Registry, name string) registry.Check {
	check := m.Observe(ctx, name)
	if sess := reg.Get(name); sess != nil {
		sess.AddCheck(check, m.maxChecks)
	}
	return check
}
