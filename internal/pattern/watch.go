package pattern

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/monitor"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
)

// Result is one session's outcome for a single watch sweep.
type Result struct {
	Name    string `json:"name"`
	Alive   bool   `json:"alive"`
	Matched bool   `json:"matched"`
	Pattern string `json:"pattern,omitempty"`
	Text    string `json:"text,omitempty"`
	Lines   int    `json:"lines"`
}

// StopReason explains why a watch ended.
type StopReason string

const (
	// StopMatched means a pattern hit and no auto-type was configured.
	StopMatched StopReason = "pattern-matched"
	// StopAutoTypeMax means a session exhausted its intervention budget.
	StopAutoTypeMax StopReason = "auto-type-max"
	// StopNoSessions means every tracked session died.
	StopNoSessions StopReason = "no-sessions"
	// StopInterrupted means the caller's context was canceled.
	StopInterrupted StopReason = "user-interrupted"
)

// WatchResult is returned when the watch loop stops.
type WatchResult struct {
	Reason     StopReason
	Iterations int
	Matched    []string
	Final      []Result
}

// Watch repeatedly sweeps tracked sessions for pattern matches. Without
// auto-type the first confirmed match stops the loop; with auto-type each
// match triggers a keystroke intervention until the per-session budget runs
// out. Dead sessions are pruned and the registry is saved every sweep.
type Watch struct {
	Term    monitor.Terminal
	Matcher *Matcher
	Store   *registry.Store

	Interval time.Duration
	// AutoType, when non-empty, is typed into a session on every confirmed
	// match instead of stopping the loop.
	AutoType string
	// AutoTypeMax caps interventions per session. Zero or less is unlimited.
	AutoTypeMax int
	// Confirm requires a pattern to hit on two consecutive sweeps before
	// the match triggers an action.
	Confirm bool

	// OnSweep is called after every sweep. Nil is fine.
	OnSweep func(iteration int, results []Result)
}

// Run drives sweeps until a stop condition is met. The first sweep runs
// immediately.
func (w *Watch) Run(ctx context.Context, reg *registry.Registry) (*WatchResult, error) {
	if w.Interval <= 0 {
		return nil, errors.New("watch interval must be positive")
	}
	if w.Matcher == nil {
		return nil, errors.New("watch needs a matcher")
	}

	autoTypeCounts := make(map[string]int)
	pending := make(map[string]bool)

	for iteration := 1; ; iteration++ {
		results := w.sweep(ctx, reg.Names())

		var matched, dead []string
		budgetExhausted := ""
		for _, r := range results {
			if !r.Alive {
				dead = append(dead, r.Name)
				continue
			}
			if !r.Matched {
				delete(pending, r.Name)
				continue
			}

			if w.Confirm && !pending[r.Name] {
				// First detection arms the session; the action waits
				// for the next sweep to agree.
				pending[r.Name] = true
				continue
			}
			delete(pending, r.Name)
			matched = append(matched, r.Name)

			if w.AutoType == "" {
				continue
			}
			if w.AutoTypeMax > 0 && autoTypeCounts[r.Name] >= w.AutoTypeMax {
				budgetExhausted = r.Name
				continue
			}
			if err := w.Term.Send(ctx, r.Name, w.AutoType); err == nil {
				autoTypeCounts[r.Name]++
			}
		}

		for _, name := range dead {
			reg.Remove(name)
			delete(pending, name)
			delete(autoTypeCounts, name)
		}
		if w.Store != nil {
			if err := w.Store.Save(reg); err != nil {
				return nil, fmt.Errorf("saving registry: %w", err)
			}
		}

		if w.OnSweep != nil {
			w.OnSweep(iteration, results)
		}

		result := &WatchResult{Iterations: iteration, Matched: matched, Final: results}
		switch {
		case budgetExhausted != "":
			result.Reason = StopAutoTypeMax
			return result, nil
		case len(matched) > 0 && w.AutoType == "":
			result.Reason = StopMatched
			return result, nil
		case reg.Len() == 0:
			result.Reason = StopNoSessions
			return result, nil
		case ctx.Err() != nil:
			result.Reason = StopInterrupted
			return result, nil
		}

		timer := time.NewTimer(w.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Reason = StopInterrupted
			return result, nil
		case <-timer.C:
		}
	}
}

// sweep checks every name once, in registry order.
func (w *Watch) sweep(ctx context.Context, names []string) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, w.checkOne(ctx, name))
	}
	return results
}

func (w *Watch) checkOne(ctx context.Context, name string) Result {
	if !w.Term.Exists(ctx, name) {
		return Result{Name: name}
	}

	snapshot, err := w.Term.Capture(ctx, name)
	if err != nil {
		if tmux.IsAbsenceError(err) {
			return Result{Name: name}
		}
		// A transient capture failure keeps the session alive and simply
		// counts as no match this sweep.
		return Result{Name: name, Alive: true}
	}

	r := Result{Name: name, Alive: true, Lines: countLines(snapshot)}
	if m, ok := w.Matcher.Match(snapshot); ok {
		r.Matched = true
		r.Pattern = m.Pattern
		r.Text = m.Text
	}
	return r
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
