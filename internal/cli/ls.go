package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/output"
	"github.com/swarmkeep/swarmkeep/internal/tmux"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

func newLsCmd() *cobra.Command {
	var lsAll bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tracked sessions with their last known status",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := openRegistry()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			f := formatter(cmd)

			type row struct {
				Name    string `json:"name"`
				Status  string `json:"status"`
				Log     string `json:"log,omitempty"`
				Command string `json:"command,omitempty"`
				Alive   bool   `json:"alive"`
				Checked string `json:"checked,omitempty"`
			}

			var rows []row
			for _, name := range reg.Names() {
				sess := reg.Get(name)
				r := row{
					Name:    name,
					Status:  "unknown",
					Command: sess.Command,
					Alive:   tmux.SessionExists(ctx, name),
				}
				if check, ok := sess.LastCheck(); ok {
					r.Status = string(check.Status)
					r.Log = check.Log
					r.Checked = humanAge(check.Time)
				}
				rows = append(rows, r)
			}

			if lsAll {
				tracked := make(map[string]bool, reg.Len())
				for _, name := range reg.Names() {
					tracked[name] = true
				}
				if live, err := tmux.ListSessions(ctx); err == nil {
					for _, s := range live {
						if !tracked[s.Name] {
							rows = append(rows, row{Name: s.Name, Status: "untracked", Alive: true})
						}
					}
				}
			}

			if f.JSONMode() {
				return f.JSON(rows)
			}

			if len(rows) == 0 {
				f.Textln("No tracked sessions. Start one with: swarmkeep spawn")
				return nil
			}

			tbl := output.NewTable(f.Writer(), "NAME", "STATUS", "CHECKED", "LOG")
			for _, r := range rows {
				tbl.AddRow(r.Name, r.Status, r.Checked, util.Truncate(r.Log, 60))
			}
			tbl.Render()
			f.Line()
			f.Muted("%s tracked", output.CountStr(reg.Len(), "session", "sessions"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&lsAll, "all", "a", false, "include untracked tmux sessions")
	return cmd
}

// humanAge renders how long ago t was, coarsely.
func humanAge(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}
