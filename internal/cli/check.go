package cli

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/monitor"
	"github.com/swarmkeep/swarmkeep/internal/output"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

func newCheckCmd() *cobra.Command {
	var checkWorkers int

	cmd := &cobra.Command{
		Use:   "check [session...]",
		Short: "Run one health check over tracked sessions",
		Long: `Capture each session's pane, classify whether it is still working, and
record the result. Sessions whose tmux session has gone away are removed
from tracking. With session names, only those sessions are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tmux.EnsureInstalled(); err != nil {
				return err
			}
			store, reg, err := openRegistry()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			f := formatter(cmd)

			if len(args) > 0 {
				return checkNamed(cmd, store, reg, args)
			}

			if reg.Len() == 0 {
				if f.JSONMode() {
					return f.JSON(&monitor.Report{})
				}
				f.Textln("No tracked sessions. Start one with: swarmkeep spawn")
				return nil
			}

			cycle := newCycle(cfg, store)
			if checkWorkers > 0 {
				cycle.Workers = checkWorkers
			}
			report, err := cycle.Run(ctx, reg)
			if err != nil {
				return err
			}

			if f.JSONMode() {
				return f.JSON(report)
			}
			printReport(f, report)
			return nil
		},
	}

	cmd.Flags().IntVar(&checkWorkers, "workers", 0, "check sessions concurrently with this many workers")
	return cmd
}

// checkNamed checks only the named sessions. Names must be tracked.
func checkNamed(cmd *cobra.Command, store *registry.Store, reg *registry.Registry, names []string) error {
	ctx := cmd.Context()
	f := formatter(cmd)

	for _, name := range names {
		if !reg.Has(name) {
			return fmt.Errorf("session %q is not tracked", name)
		}
	}

	mon := monitor.New(newTerminal(cfg), newClassifier(cfg), cfg.Monitor.MaxChecks)
	report := &monitor.Report{}
	mode := status.Mode(cfg.Monitor.Mode)
	for _, name := range names {
		check := mon.CheckOne(ctx, reg, name)
		if check.Status == status.Dead {
			reg.Remove(name)
			report.Removed = append(report.Removed, name)
		}
		report.Entries = append(report.Entries, monitor.Entry{
			Name:   name,
			Status: check.Status,
			Log:    check.Log,
			Action: status.Decide(check.Status, mode),
		})
	}
	if err := store.Save(reg); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}

	if f.JSONMode() {
		return f.JSON(report)
	}
	printReport(f, report)
	return nil
}

// printReport writes one line per session with a colored status badge,
// followed by a count summary.
func printReport(f *output.Formatter, report *monitor.Report) {
	nameWidth := 0
	for _, e := range report.Entries {
		if w := runewidth.StringWidth(e.Name); w > nameWidth {
			nameWidth = w
		}
	}
	for _, e := range report.Entries {
		// Pad before styling so ANSI escapes do not skew the column width.
		pad := strings.Repeat(" ", max(0, 7-len(e.Status)))
		f.Textln("  %s  %s%s  %s",
			runewidth.FillRight(e.Name, nameWidth),
			f.StatusBadge(e.Status), pad,
			util.Truncate(e.Log, 80))
	}

	counts := report.Counts()
	f.Line()
	f.Muted("%d working, %d stopped, %d error, %d dead",
		counts[status.Working], counts[status.Stopped], counts[status.Error], counts[status.Dead])
}
