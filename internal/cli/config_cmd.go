package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/swarmkeep/swarmkeep/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigPathCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd)
			if f.JSONMode() {
				return f.JSON(cfg)
			}
			shown := *cfg
			if shown.Classifier.APIKey != "" {
				shown.Classifier.APIKey = "********"
			}
			return toml.NewEncoder(f.Writer()).Encode(&shown)
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			formatter(cmd).Textln("%s", path)
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var initForce bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !initForce {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			f := formatter(cmd)
			f.Textln("Wrote %s", path)
			f.Muted("Set SWARMKEEP_API_KEY (or OPENAI_API_KEY) to enable the chat classifier")
			return nil
		},
	}

	cmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	return cmd
}
