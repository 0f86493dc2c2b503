package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"esgdata/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts), newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration to --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if _, err := os.Stat(path); err == nil && !force {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return WrapExitError(ExitFailure, "stat config", err)
			}

			if err := config.DefaultConfig().Save(path); err != nil {
				return WrapExitError(ExitFailure, "write config", err)
			}
			return rootOpts.formatter(cmd).Success(map[string]string{"path": path}, "wrote "+path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file, .env and environment)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitFailure, "load config", err)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "render config", err)
			}
			return rootOpts.formatter(cmd).Success(cfg, string(out))
		},
	}
}
