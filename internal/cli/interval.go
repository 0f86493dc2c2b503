package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"esgdata/internal/domain"
	"esgdata/internal/interval"
)

// intervalResult is one parsed argument.
type intervalResult struct {
	Input     string                   `json:"input"`
	Percent   interval.Bounds          `json:"percent"`
	Indicator domain.IntervalIndicator `json:"indicator"`
}

// NewIntervalCommand creates the interval command.
func NewIntervalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "interval <text>...",
		Short: "Parse vendor percentage intervals",
		Long: `Parse one or more vendor percentage intervals and print their bounds.

Example:
  esgdata interval "[ 90 - 100% ]" "] 0 - 10% [" None`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			results := make([]intervalResult, 0, len(args))
			var text strings.Builder
			for _, arg := range args {
				b, err := interval.ParseBounds(e.log, arg)
				if err != nil {
					return WrapExitError(ExitFailure, "parse interval", err)
				}
				ind := b.Indicator()
				results = append(results, intervalResult{Input: arg, Percent: b, Indicator: ind})
				fmt.Fprintf(&text, "%-16s lower=%.2f mean=%.3f upper=%.2f\n", arg, ind.Lower, ind.Mean, ind.Upper)
			}
			return rootOpts.formatter(cmd).Success(results, strings.TrimSuffix(text.String(), "\n"))
		},
	}
}
