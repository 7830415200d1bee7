package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/notify"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
)

func newKillCmd() *cobra.Command {
	var killAll bool

	cmd := &cobra.Command{
		Use:   "kill [session...]",
		Short: "Kill sessions and stop tracking them",
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

			names := args
			if killAll {
				names = reg.Names()
			}
			if len(names) == 0 {
				return fmt.Errorf("specify sessions to kill, or --all")
			}

			notifier := notify.New(cfg.Notifications)
			var killed []string
			for _, name := range names {
				if !reg.Has(name) && !killAll {
					return fmt.Errorf("session %q is not tracked", name)
				}
				if err := tmux.KillSession(ctx, name); err != nil && !tmux.IsAbsenceError(err) {
					return fmt.Errorf("killing %s: %w", name, err)
				}
				reg.Remove(name)
				killed = append(killed, name)
				if err := notifier.Notify(notify.Event{
					Type:    notify.EventSessionKilled,
					Session: name,
					Message: fmt.Sprintf("Session %s killed", name),
				}); err != nil {
					slog.Warn("notification failed", "event", notify.EventSessionKilled, "err", err)
				}
			}

			if err := store.Save(reg); err != nil {
				return fmt.Errorf("saving registry: %w", err)
			}

			if f.JSONMode() {
				return f.JSON(map[string]any{"killed": killed})
			}
			for _, name := range killed {
				f.Textln("Killed %s", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&killAll, "all", false, "kill every tracked session")
	return cmd
}
