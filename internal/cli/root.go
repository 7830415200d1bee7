// Package cli implements the swarmkeep command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/config"
	"github.com/swarmkeep/swarmkeep/internal/output"
)

var (
	cfgFile    string
	jsonOutput bool
	noColor    bool
	verbose    bool

	cfg *config.Config

	// Build information, set via ldflags.
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "swarmkeep",
	Short: "Keep watch over a swarm of tmux coding agents",
	Long: `Swarmkeep tracks long-running tmux sessions (usually AI coding agents),
classifies whether each one is still working, and keeps watching until one
stops and needs you.

Quick Start:
  swarmkeep spawn --cmd claude        # Start a tracked agent session
  swarmkeep ls                        # List tracked sessions
  swarmkeep check                     # One-shot health check
  swarmkeep watch --interval 60       # Watch until an agent stops
  swarmkeep watch --pattern "error"   # Watch for output patterns instead`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/swarmkeep/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newSpawnCmd(),
		newLsCmd(),
		newCheckCmd(),
		newWatchCmd(),
		newSendCmd(),
		newKillCmd(),
		newAttachCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
}

// setupLogging routes structured logs to stderr so stdout stays parseable.
func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func formatter(cmd *cobra.Command) *output.Formatter {
	return output.New(cmd.OutOrStdout(), jsonOutput, noColor)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			f := formatter(cmd)
			if f.JSONMode() {
				f.JSON(map[string]string{"version": Version, "commit": Commit})
				return
			}
			f.Textln("swarmkeep %s (%s)", Version, Commit)
		},
	}
}
