package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/naming"
	"github.com/swarmkeep/swarmkeep/internal/notify"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
)

func newSpawnCmd() *cobra.Command {
	var (
		spawnDir     string
		spawnCommand string
	)

	cmd := &cobra.Command{
		Use:   "spawn [name]",
		Short: "Create and track a new tmux session",
		Long: `Create a detached tmux session and add it to the registry. Without a
name, one is generated in the form agent-NN-insect.

Examples:
  swarmkeep spawn                          # agent-01-bee running a shell
  swarmkeep spawn --cmd claude             # generated name, runs claude
  swarmkeep spawn builder --cmd "make -j"  # explicit name`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tmux.EnsureInstalled(); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, reg, err := openRegistry()
			if err != nil {
				return err
			}

			name := ""
			if len(args) > 0 {
				name = args[0]
				if err := tmux.ValidateSessionName(name); err != nil {
					return err
				}
			} else {
				name = naming.Generate(takenNames(cmd, reg))
			}

			if tmux.SessionExists(ctx, name) {
				return fmt.Errorf("tmux session %q already exists", name)
			}

			dir := spawnDir
			if dir == "" {
				if wd, err := os.Getwd(); err == nil {
					dir = wd
				}
			}

			if err := tmux.CreateSession(ctx, name, dir, spawnCommand); err != nil {
				return fmt.Errorf("creating session: %w", err)
			}

			reg.Put(name, registry.NewSession(spawnCommand))
			if err := store.Save(reg); err != nil {
				return fmt.Errorf("saving registry: %w", err)
			}

			notifier := notify.New(cfg.Notifications)
			if err := notifier.Notify(notify.Event{
				Type:    notify.EventSessionCreated,
				Session: name,
				Message: fmt.Sprintf("Session %s created", name),
			}); err != nil {
				slog.Warn("notification failed", "event", notify.EventSessionCreated, "err", err)
			}

			f := formatter(cmd)
			if f.JSONMode() {
				return f.JSON(map[string]string{"name": name, "command": spawnCommand, "dir": dir})
			}
			f.Textln("Created session %s", name)
			f.Muted("Attach with: swarmkeep attach %s", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&spawnDir, "dir", "", "working directory for the session (default: current directory)")
	cmd.Flags().StringVar(&spawnCommand, "cmd", "", "command to run inside the session (default: a shell)")
	return cmd
}

// takenNames collects names the generator must avoid: tracked sessions plus
// whatever tmux is currently running.
func takenNames(cmd *cobra.Command, reg *registry.Registry) []string {
	names := reg.Names()
	if live, err := tmux.ListSessions(cmd.Context()); err == nil {
		for _, s := range live {
			names = append(names, s.Name)
		}
	}
	return names
}
