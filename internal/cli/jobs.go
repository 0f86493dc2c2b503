package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"esgdata/internal/etl"
)

// NewJobsCommand creates the jobs command group.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage stored import jobs",
	}
	cmd.AddCommand(
		newJobsListCommand(rootOpts),
		newJobsCreateCommand(rootOpts),
		newJobsDeleteCommand(rootOpts),
		newJobsLogsCommand(rootOpts),
	)
	return cmd
}

func newJobsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List import jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			jobs, err := e.imports.ListJobs()
			if err != nil {
				return WrapExitError(ExitFailure, "list jobs", err)
			}
			return rootOpts.formatter(cmd).Success(jobs, formatJobs(jobs))
		},
	}
}

func formatJobs(jobs []etl.SyncJob) string {
	if len(jobs) == 0 {
		return "no import jobs"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-20s  %-10s  %-10s  %s\n", "ID", "NAME", "SOURCE", "TRIGGER", "LAST RUN")
	for _, j := range jobs {
		last := "never"
		if !j.LastRunAt.IsZero() {
			last = fmt.Sprintf("%s %s", j.LastRunAt.Local().Format(time.DateTime), j.LastStatus)
		}
		fmt.Fprintf(&b, "%-36s  %-20s  %-10s  %-10s  %s\n", j.ID, j.Name, j.SourceType, j.TriggerType, last)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type jobsCreateOptions struct {
	JobFlags
	Trigger       string
	TriggerConfig string
	Disabled      bool
}

func newJobsCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &jobsCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an import job",
		Long: `Create a stored import job.

Example:
  esgdata jobs create --name vendor-daily --source csv_file \
    --config-json '{"filePath":"/data/feed.csv"}' \
    --trigger file_watch --trigger-config /data/feed.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := opts.input()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid job", err)
			}
			in.TriggerType = opts.Trigger
			in.TriggerConfig = opts.TriggerConfig
			in.Enabled = !opts.Disabled

			e, err := openEnv(cmd.Context(), rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			job, err := e.imports.CreateJob(cmd.Context(), in)
			if err != nil {
				return WrapExitError(ExitCommandError, "create job", err)
			}
			return rootOpts.formatter(cmd).Success(job, "created job "+job.ID)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "job name")
	_ = cmd.MarkFlagRequired("name")
	opts.register(cmd)
	_ = cmd.MarkFlagRequired("source")
	cmd.Flags().StringVar(&opts.Trigger, "trigger", "manual", "trigger (manual|schedule|file_watch)")
	cmd.Flags().StringVar(&opts.TriggerConfig, "trigger-config", "", "cron expression or watched path")
	cmd.Flags().BoolVar(&opts.Disabled, "disabled", false, "create the job disabled")
	return cmd
}

func newJobsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an import job and its run logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.imports.DeleteJob(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "delete job", err)
			}
			return rootOpts.formatter(cmd).Success(map[string]string{"id": args[0]}, "deleted job "+args[0])
		},
	}
}

func newJobsLogsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Show recent runs of an import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			logs, err := e.imports.ListRunLogs(args[0], limit)
			if err != nil {
				return WrapExitError(ExitFailure, "list run logs", err)
			}
			return rootOpts.formatter(cmd).Success(logs, formatRunLogs(logs))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func formatRunLogs(logs []etl.SyncRunLog) string {
	if len(logs) == 0 {
		return "no runs"
	}
	var b strings.Builder
	for _, l := range logs {
		fmt.Fprintf(&b, "%s  %-7s  read=%d written=%d  %s",
			l.StartedAt.Local().Format(time.DateTime), l.Status, l.RowsRead, l.RowsWritten,
			l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond))
		if l.Error != "" {
			fmt.Fprintf(&b, "  %s", l.Error)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}
