package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/registry"
)

// LoopState is the lifecycle of a watch loop.
type LoopState string

const (
	LoopRunning  LoopState = "running"
	LoopStopping LoopState = "stopping"
	LoopStopped  LoopState = "stopped"
)

// StopReason explains why a loop ended.
type StopReason string

const (
	// StopSessionStopped means a session met the confirmation policy.
	StopSessionStopped StopReason = "session-stopped"
	// StopUserInterrupted means the caller's context was canceled. The
	// in-flight cycle still completed and persisted before the loop ended.
	StopUserInterrupted StopReason = "user-interrupted"
	// StopMaxCycles means the configured cycle budget ran out.
	StopMaxCycles StopReason = "max-cycles"
	// StopNoSessions means the registry drained to empty.
	StopNoSessions StopReason = "no-sessions"
)

// LoopResult is returned when a loop reaches its stopped state.
type LoopResult struct {
	Reason    StopReason
	Cycles    int
	Confirmed []string
	Final     *Report
}

// Loop repeats monitoring cycles until a stop condition is met. With Confirm
// set, a session must come back non-working on two consecutive cycles before
// the loop treats it as stopped; a working check in between resets the count.
type Loop struct {
	Cycle     *Cycle
	Confirm   bool
	MaxCycles int

	// OnReport is called after every cycle, before stop conditions are
	// evaluated. Nil is fine.
	OnReport func(cycle int, r *Report)

	mu       sync.Mutex
	interval time.Duration
	state    LoopState
}

// NewLoop builds a loop around an assembled cycle.
func NewLoop(cycle *Cycle, interval time.Duration) *Loop {
	return &Loop{Cycle: cycle, interval: interval, state: LoopStopped}
}

// State reports the loop's current lifecycle state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s LoopState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// SetInterval changes the delay between cycles. It takes effect at the next
// wait, so a reload never cuts an in-flight cycle short.
func (l *Loop) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.interval = d
	l.mu.Unlock()
}

func (l *Loop) currentInterval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Run drives cycles until a session confirms as stopped, the context is
// canceled, the cycle budget runs out, or the registry drains. The first
// cycle runs immediately; cancellation between cycles is honored at the next
// wait, and cancellation during a cycle lets that cycle finish and persist.
func (l *Loop) Run(ctx context.Context, reg *registry.Registry) (*LoopResult, error) {
	if l.currentInterval() <= 0 {
		return nil, errors.New("loop interval must be positive")
	}

	l.setState(LoopRunning)
	defer l.setState(LoopStopped)

	counts := make(map[string]int)
	threshold := 1
	if l.Confirm {
		threshold = 2
	}

	for cycle := 1; ; cycle++ {
		// The cycle must complete and persist even if the caller cancels
		// mid-sweep; interruption is handled after the save.
		report, err := l.Cycle.Run(context.WithoutCancel(ctx), reg)
		if err != nil {
			return nil, err
		}

		confirmed := l.updateCounts(counts, report, threshold)

		if l.OnReport != nil {
			l.OnReport(cycle, report)
		}

		result := &LoopResult{Cycles: cycle, Confirmed: confirmed, Final: report}
		switch {
		case len(confirmed) > 0:
			l.setState(LoopStopping)
			result.Reason = StopSessionStopped
			return result, nil
		case ctx.Err() != nil:
			l.setState(LoopStopping)
			result.Reason = StopUserInterrupted
			return result, nil
		case len(report.Entries) == 0:
			result.Reason = StopNoSessions
			return result, nil
		case l.MaxCycles > 0 && cycle >= l.MaxCycles:
			result.Reason = StopMaxCycles
			return result, nil
		}

		timer := time.NewTimer(l.currentInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Reason = StopUserInterrupted
			return result, nil
		case <-timer.C:
		}
	}
}

// updateCounts advances the consecutive non-working counters from a report
// and returns the sessions that reached the threshold. Counters are held in
// memory only and are pruned for sessions the cycle no longer saw.
func (l *Loop) updateCounts(counts map[string]int, report *Report, threshold int) []string {
	seen := make(map[string]bool, len(report.Entries))
	var confirmed []string
	for _, e := range report.Entries {
		seen[e.Name] = true
		if e.Status.IsTerminal() {
			counts[e.Name]++
		} else {
			counts[e.Name] = 0
		}
		if counts[e.Name] >= threshold {
			confirmed = append(confirmed, e.Name)
		}
	}
	for name := range counts {
		if !seen[name] {
			delete(counts, name)
		}
	}
	return confirmed
}
