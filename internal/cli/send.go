package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/tmux"
)

func newSendCmd() *cobra.Command {
	var (
		sendNoEnter   bool
		sendInterrupt bool
	)

	cmd := &cobra.Command{
		Use:   "send <session> [text]",
		Short: "Send keystrokes to a session",
		Long: `Type text into a tracked session's pane, followed by Enter unless
--no-enter is given. With --interrupt, send Ctrl-C instead of text.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tmux.EnsureInstalled(); err != nil {
				return err
			}
			ctx := cmd.Context()
			name := args[0]

			if !tmux.SessionExists(ctx, name) {
				return fmt.Errorf("tmux session %q does not exist", name)
			}

			if sendInterrupt {
				if err := tmux.SendInterrupt(ctx, name); err != nil {
					return fmt.Errorf("sending interrupt: %w", err)
				}
				formatter(cmd).Muted("Sent interrupt to %s", name)
				return nil
			}

			if len(args) < 2 {
				return fmt.Errorf("text to send is required unless --interrupt is given")
			}
			if err := tmux.SendKeys(ctx, name, args[1], !sendNoEnter); err != nil {
				return fmt.Errorf("sending keys: %w", err)
			}
			formatter(cmd).Muted("Sent to %s", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&sendNoEnter, "no-enter", false, "do not press Enter after the text")
	cmd.Flags().BoolVar(&sendInterrupt, "interrupt", false, "send Ctrl-C instead of text")
	return cmd
}
