package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/tmux"
)

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <session>",
		Short: "Attach to a session (switches client when already inside tmux)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tmux.EnsureInstalled(); err != nil {
				return err
			}
			name := args[0]
			if !tmux.SessionExists(cmd.Context(), name) {
				return fmt.Errorf("tmux session %q does not exist", name)
			}
			return tmux.AttachOrSwitch(name)
		},
	}
}
