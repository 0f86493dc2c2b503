package cli

import (
	"github.com/spf13/cobra"

	mcpserver "esgdata/internal/mcp"
)

// Version is stamped at build time.
var Version = "dev"

// NewMCPCommand creates the mcp command.
func NewMCPCommand(rootOpts *RootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdin/stdout",
		Long: `Serve esgdata as an MCP server on stdio. With --offline no store is
opened and only the interval and pipeline tools are available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := mcpserver.Deps{Version: Version}
			if offline {
				e, err := loadEnv(rootOpts)
				if err != nil {
					return err
				}
				defer e.Close()
				deps.Log = e.log
			} else {
				e, err := openEnv(cmd.Context(), rootOpts, true)
				if err != nil {
					return err
				}
				defer e.Close()
				deps.Log = e.log
				deps.Imports = e.imports
				deps.Reporting = e.reporting
			}

			if err := mcpserver.New(deps).ServeStdio(); err != nil {
				return WrapExitError(ExitFailure, "mcp server", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "serve only the tools that need no store")
	return cmd
}
