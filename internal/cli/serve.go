package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownGrace bounds how long serve waits for in-flight imports.
const shutdownGrace = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled and file-watch import jobs until interrupted",
		Long: `Start the import scheduler. Enabled jobs with a schedule trigger run on
their cron expression; file_watch jobs run when their file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx, rootOpts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			e.imports.RestartWatchers(ctx)
			scheduled, files := e.imports.Watching()
			e.log.Info("serving", zap.Int("scheduled", scheduled), zap.Int("watchedFiles", files))

			<-ctx.Done()
			e.imports.Stop()
			active := e.imports.ActiveRuns()
			e.log.Info("shutting down", zap.Int("activeRuns", len(active)))

			waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := e.imports.WaitRunning(waitCtx); err != nil {
				for _, r := range e.imports.ActiveRuns() {
					e.log.Warn("abandoning run", zap.String("job", r.JobID), zap.String("trigger", r.Trigger), zap.Time("started", r.Started))
				}
			}
			return nil
		},
	}
}
