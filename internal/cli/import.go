package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"esgdata/internal/etl"
	"esgdata/internal/service"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	JobID string
	JobFlags
}

// JobFlags describe a job on the command line. Shared by import and jobs create.
type JobFlags struct {
	Name           string
	Source         string
	ConfigJSON     string
	TransformsJSON string
	Mode           string
	DedupeKey      string
}

func (f *JobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Source, "source", "", "source type (csv_file, json_file, database)")
	cmd.Flags().StringVar(&f.ConfigJSON, "config-json", "{}", "source configuration as JSON")
	cmd.Flags().StringVar(&f.TransformsJSON, "transforms-json", "", "JSON array of {type, config} transforms")
	cmd.Flags().StringVar(&f.Mode, "mode", "append", "sync mode (append|replace)")
	cmd.Flags().StringVar(&f.DedupeKey, "dedupe-key", "", "comma-separated fields identifying duplicate rows")
}

// input converts the flags into a job definition.
func (f *JobFlags) input() (service.JobInput, error) {
	in := service.JobInput{
		Name:       f.Name,
		SourceType: f.Source,
		SyncMode:   f.Mode,
		DedupeKey:  f.DedupeKey,
	}
	if err := json.Unmarshal([]byte(f.ConfigJSON), &in.SourceConfig); err != nil {
		return in, fmt.Errorf("parse --config-json: %w", err)
	}
	if f.TransformsJSON != "" {
		var transforms []etl.TransformConfig
		if err := json.Unmarshal([]byte(f.TransformsJSON), &transforms); err != nil {
			return in, fmt.Errorf("parse --transforms-json: %w", err)
		}
		in.Transforms = transforms
	}
	return in, nil
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run an import into the reporting collection",
		Long: `Run a stored import job, or an ad hoc one described by flags.

Example:
  esgdata import --job 6f1c...
  esgdata import --source csv_file --config-json '{"filePath":"feed.csv","delimiter":";"}' \
    --transforms-json '[{"type":"interval","config":{"field":"SDG","target":"sdg_involvement"}},{"type":"nest","config":{}}]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.JobID == "") == (opts.Source == "") {
				return NewExitError(ExitCommandError, "exactly one of --job or --source is required")
			}

			e, err := openEnv(cmd.Context(), rootOpts, true)
			if err != nil {
				return err
			}
			defer e.Close()

			var result *etl.SyncResult
			if opts.JobID != "" {
				result, err = e.imports.RunJob(cmd.Context(), opts.JobID)
			} else {
				in, ierr := opts.input()
				if ierr != nil {
					return WrapExitError(ExitCommandError, "invalid job", ierr)
				}
				in.Name = "adhoc"
				result, err = e.imports.RunAdHoc(cmd.Context(), in)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "import failed", err)
			}
			return opts.formatter(cmd).Success(result,
				fmt.Sprintf("imported %d of %d rows in %s", result.RowsWritten, result.RowsRead, result.Duration))
		},
	}

	cmd.Flags().StringVar(&opts.JobID, "job", "", "stored job ID")
	opts.register(cmd)
	return cmd
}
