package cli

import (
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"esgdata/internal/pipeline"
)

// PipelineOptions holds flags for the pipeline commands.
type PipelineOptions struct {
	*RootOptions
	Canonical bool
	Dynamic   bool
}

// NewPipelineCommand creates the pipeline command group.
func NewPipelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PipelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Print aggregation stages that resolve references",
	}
	cmd.PersistentFlags().BoolVar(&opts.Canonical, "canonical", false, "emit canonical Extended JSON")

	deref := &cobra.Command{
		Use:   "deref <field>",
		Short: "Stage replacing a {_ref: DBRef} wrapper by its identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPipeline(cmd, opts, mongo.Pipeline{pipeline.InlineDereference(args[0])})
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve <field> <collection>",
		Short: "Stages replacing an identifier by the document it points to",
		Long: `Print the $lookup, $addFields and $unwind stages that replace the
identifier in <field> by the referenced document of <collection>.

Example:
  esgdata pipeline resolve company companies
  esgdata pipeline resolve company companies --dynamic`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := pipeline.ResolveReference(args[0], args[1])
			if opts.Dynamic {
				stages = pipeline.Dereference(args[0], args[1])
			}
			return printPipeline(cmd, opts, stages)
		},
	}
	resolve.Flags().BoolVar(&opts.Dynamic, "dynamic", false, "field holds a {_ref: DBRef} wrapper")

	cmd.AddCommand(deref, resolve)
	return cmd
}

func printPipeline(cmd *cobra.Command, opts *PipelineOptions, stages mongo.Pipeline) error {
	out, err := pipeline.MarshalExtJSON(stages, opts.Canonical)
	if err != nil {
		return WrapExitError(ExitFailure, "marshal pipeline", err)
	}
	return opts.formatter(cmd).Raw(out)
}
