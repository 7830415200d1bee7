package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
)

// Cycle sweeps every tracked session once: observe, record, decide, prune
// dead sessions, then persist the registry in a single save.
type Cycle struct {
	Monitor *Monitor
	Store   *registry.Store
	Mode    status.Mode

	// Workers bounds concurrent observations. Zero or one runs checks
	// serially; observations never mutate the registry, so higher values
	// only parallelize the tmux and classifier calls.
	Workers int
}

// Run executes one cycle over reg. Per-session failures are folded into
// check statuses and never abort the sweep; only a failed save is an error.
func (c *Cycle) Run(ctx context.Context, reg *registry.Registry) (*Report, error) {
	report := &Report{Started: time.Now().UTC()}
	names := reg.Names()

	checks := c.observeAll(ctx, names)

	// Registry mutation stays on this goroutine regardless of worker count.
	for i, name := range names {
		check := checks[i]
		if sess := reg.Get(name); sess != nil {
			sess.AddCheck(check, c.Monitor.maxChecks)
		}
		if check.Status == status.Dead {
			reg.Remove(name)
			report.Removed = append(report.Removed, name)
		}
		report.Entries = append(report.Entries, Entry{
			Name:   name,
			Status: check.Status,
			Log:    check.Log,
			Action: status.Decide(check.Status, c.Mode),
		})
	}
	report.Finished = time.Now().UTC()

	if c.Store != nil {
		if err := c.Store.Save(reg); err != nil {
			return report, fmt.Errorf("saving registry: %w", err)
		}
	}
	return report, nil
}

func (c *Cycle) observeAll(ctx context.Context, names []string) []registry.Check {
	checks := make([]registry.Check, len(names))
	if c.Workers <= 1 || len(names) <= 1 {
		for i, name := range names {
			checks[i] = c.Monitor.Observe(ctx, name)
		}
		return checks
	}

	pool, err := ants.NewPool(c.Workers)
	if err != nil {
		// Pool creation only fails on invalid sizes; fall back to serial.
		for i, name := range names {
			checks[i] = c.Monitor.Observe(ctx, name)
		}
		return checks
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, name := range names {
		i, name := i, name
		wg.Add(1)
		submit := func() {
			defer wg.Done()
			checks[i] = c.Monitor.Observe(ctx, name)
		}
		if err := pool.Submit(submit); err != nil {
			submit()
		}
	}
	wg.Wait()
	return checks
}
