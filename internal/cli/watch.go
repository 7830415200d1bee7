package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/config"
	"github.com/swarmkeep/swarmkeep/internal/monitor"
	"github.com/swarmkeep/swarmkeep/internal/notify"
	"github.com/swarmkeep/swarmkeep/internal/output"
	"github.com/swarmkeep/swarmkeep/internal/pattern"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
	"github.com/swarmkeep/swarmkeep/internal/util"
	"github.com/swarmkeep/swarmkeep/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		watchInterval    time.Duration
		watchConfirm     bool
		watchMaxCycles   int
		watchWorkers     int
		watchMode        string
		watchPatterns    []string
		watchRegex       bool
		watchFuzzy       int
		watchAutoType    string
		watchAutoTypeMax int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch sessions until one stops, errors, or matches a pattern",
		Long: `Run repeated health checks over every tracked session and block until a
stop condition is met. By default the loop ends when a session is
confirmed stopped or errored. With --pattern, pane output is matched
against the given patterns instead of being classified, optionally
typing a response into matching sessions.

Examples:
  swarmkeep watch                                   # until an agent stops
  swarmkeep watch --interval 30s --max-cycles 100
  swarmkeep watch --pattern "Continue?" --auto-type y
  swarmkeep watch --pattern "panic:" --regex`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tmux.EnsureInstalled(); err != nil {
				return err
			}
			store, reg, err := openRegistry()
			if err != nil {
				return err
			}
			f := formatter(cmd)
			if reg.Len() == 0 {
				return fmt.Errorf("no tracked sessions to watch; start one with: swarmkeep spawn")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			interval := watchInterval
			if interval <= 0 {
				interval = cfg.Monitor.Interval()
			}
			confirm := watchConfirm || cfg.Monitor.Confirm

			if len(watchPatterns) > 0 {
				return runPatternWatch(ctx, f, store, reg, patternOptions{
					patterns:    watchPatterns,
					regex:       watchRegex,
					fuzzy:       watchFuzzy,
					autoType:    watchAutoType,
					autoTypeMax: watchAutoTypeMax,
					interval:    interval,
					confirm:     confirm,
				})
			}

			cycle := newCycle(cfg, store)
			if watchWorkers > 0 {
				cycle.Workers = watchWorkers
			}
			if watchMode != "" {
				m := status.Mode(watchMode)
				if m != status.ModeInteractive && m != status.ModeUnattended {
					return fmt.Errorf("unknown mode %q (want interactive or unattended)", watchMode)
				}
				cycle.Mode = m
			}

			loop := monitor.NewLoop(cycle, interval)
			loop.Confirm = confirm
			loop.MaxCycles = watchMaxCycles
			loop.OnReport = func(n int, r *monitor.Report) {
				if f.JSONMode() {
					return
				}
				f.Title("Cycle %d  %s", n, r.Finished.Format("15:04:05"))
				printReport(f, r)
				f.Line()
			}

			if cw := watchConfigFile(loop); cw != nil {
				defer cw.Close()
			}

			result, err := loop.Run(ctx, reg)
			if err != nil {
				return err
			}

			announceLoopEnd(result)

			if f.JSONMode() {
				return f.JSON(result)
			}
			f.Textln("Watch ended after %s: %s",
				output.CountStr(result.Cycles, "cycle", "cycles"), result.Reason)
			for _, name := range result.Confirmed {
				if e := result.Final.Entry(name); e != nil {
					f.Textln("  %s is %s: %s", name, f.StatusBadge(e.Status), util.Truncate(e.Log, 80))
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&watchInterval, "interval", 0, "delay between cycles (default: from config)")
	cmd.Flags().BoolVar(&watchConfirm, "confirm", false, "require two consecutive non-working cycles before stopping")
	cmd.Flags().IntVar(&watchMaxCycles, "max-cycles", 0, "stop after this many cycles (0 = unlimited)")
	cmd.Flags().IntVar(&watchWorkers, "workers", 0, "check sessions concurrently with this many workers")
	cmd.Flags().StringVar(&watchMode, "mode", "", "action policy: interactive or unattended (default: from config)")
	cmd.Flags().StringArrayVar(&watchPatterns, "pattern", nil, "watch pane output for this pattern instead of classifying (repeatable)")
	cmd.Flags().BoolVar(&watchRegex, "regex", false, "treat patterns as regular expressions")
	cmd.Flags().IntVar(&watchFuzzy, "fuzzy", 0, "fuzzy-match patterns at this similarity threshold (0 = exact)")
	cmd.Flags().StringVar(&watchAutoType, "auto-type", "", "text to type into a session when a pattern matches")
	cmd.Flags().IntVar(&watchAutoTypeMax, "auto-type-max", 3, "per-session budget of auto-type interventions (0 = unlimited)")
	return cmd
}

// watchConfigFile hot-reloads the monitoring interval when the config file
// changes on disk. Failure to watch is not fatal; the loop just keeps its
// starting interval.
func watchConfigFile(loop *monitor.Loop) *watcher.ConfigWatcher {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	cw, err := watcher.Watch(path, func(c *config.Config) {
		slog.Info("config reloaded", "interval", c.Monitor.Interval())
		loop.SetInterval(c.Monitor.Interval())
	}, watcher.WithErrorHandler(func(err error) {
		slog.Warn("config reload failed", "err", err)
	}))
	if err != nil {
		slog.Debug("config watch unavailable", "err", err)
		return nil
	}
	return cw
}

// announceLoopEnd delivers notifications for a finished health watch: one
// event per confirmed session plus a watch-ended summary, to the configured
// channels and to any project webhooks in the working directory.
func announceLoopEnd(result *monitor.LoopResult) {
	var events []notify.Event
	for _, name := range result.Confirmed {
		e := result.Final.Entry(name)
		if e == nil {
			continue
		}
		if e.Status == status.Dead {
			events = append(events, notify.NewSessionDeadEvent(name))
		} else {
			events = append(events, notify.NewSessionStoppedEvent(name, e.Log))
		}
	}
	events = append(events, notify.NewWatchEndedEvent(string(result.Reason), result.Cycles, result.Confirmed))
	deliver(events)
}

// announceWatchEnd mirrors announceLoopEnd for pattern watches.
func announceWatchEnd(result *pattern.WatchResult) {
	var events []notify.Event
	for _, r := range result.Final {
		if r.Matched {
			events = append(events, notify.NewPatternMatchedEvent(r.Name, r.Pattern, r.Text))
		}
	}
	events = append(events, notify.NewWatchEndedEvent(string(result.Reason), result.Iterations, result.Matched))
	deliver(events)
}

// deliver sends events through the configured channels and, when the working
// directory carries a .swarmkeep.yaml, through its webhooks. Delivery errors
// are logged and never fail the command.
func deliver(events []notify.Event) {
	notifier := notify.New(cfg.Notifications)

	var dispatcher *notify.Dispatcher
	if wd, err := os.Getwd(); err == nil {
		if defs, err := notify.LoadProjectWebhooks(wd); err != nil {
			slog.Warn("project webhooks skipped", "err", err)
		} else if len(defs) > 0 {
			dispatcher = notify.NewDispatcher(defs)
		}
	}

	for _, ev := range events {
		if err := notifier.Notify(ev); err != nil {
			slog.Warn("notification failed", "event", ev.Type, "err", err)
		}
		if dispatcher != nil {
			if err := dispatcher.Dispatch(ev); err != nil {
				slog.Warn("webhook dispatch failed", "event", ev.Type, "err", err)
			}
		}
	}
}

type patternOptions struct {
	patterns    []string
	regex       bool
	fuzzy       int
	autoType    string
	autoTypeMax int
	interval    time.Duration
	confirm     bool
}

// buildMatcher turns the pattern flags into a matcher.
func buildMatcher(opts patternOptions) (*pattern.Matcher, error) {
	switch {
	case opts.regex:
		return pattern.NewRegexp(opts.patterns)
	case opts.fuzzy > 0:
		return pattern.New(opts.patterns, pattern.WithFuzzy(float64(opts.fuzzy)))
	default:
		return pattern.New(opts.patterns)
	}
}

// runPatternWatch drives the pattern-matching variant of watch.
func runPatternWatch(ctx context.Context, f *output.Formatter, store *registry.Store, reg *registry.Registry, opts patternOptions) error {
	m, err := buildMatcher(opts)
	if err != nil {
		return err
	}

	w := &pattern.Watch{
		Term:        newTerminal(cfg),
		Matcher:     m,
		Store:       store,
		Interval:    opts.interval,
		AutoType:    opts.autoType,
		AutoTypeMax: opts.autoTypeMax,
		Confirm:     opts.confirm,
	}
	if !f.JSONMode() {
		w.OnSweep = func(n int, results []pattern.Result) {
			for _, r := range results {
				if r.Matched {
					f.Textln("  [%d] %s matched %q: %s", n, r.Name, r.Pattern, util.Truncate(r.Text, 80))
				}
			}
		}
	}

	result, err := w.Run(ctx, reg)
	if err != nil {
		return err
	}

	announceWatchEnd(result)

	if f.JSONMode() {
		return f.JSON(result)
	}
	f.Textln("Watch ended after %s: %s",
		output.CountStr(result.Iterations, "sweep", "sweeps"), result.Reason)
	for _, name := range result.Matched {
		f.Textln("  %s matched", name)
	}
	return nil
}
