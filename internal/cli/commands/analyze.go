package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/csvscope/internal/analysis"
	"github.com/leapstack-labs/csvscope/internal/render"
	"github.com/leapstack-labs/csvscope/internal/session"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	Stats    []string
	Plot     string
	PlotType string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Analyze a CSV file once and print the result",
		Long: `Upload a CSV file to the analysis service and print its structure:
a summary, a preview of the first rows and a description of every column.

Descriptive statistics and a chart can be requested in the same run.`,
		Example: `  # Structure only
  csvscope analyze data.csv

  # Ten preview rows plus statistics for two numeric columns
  csvscope analyze data.csv --rows 10 --stats price,qty

  # Pie chart of a column, exported as PNG
  csvscope analyze data.csv --plot city --plot-type pie --png-dir charts`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeCSVFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			return analyzeFile(cmd.Context(), cc, cc.NewClient(), args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Stats, "stats", nil, "Numeric columns to describe (comma-separated)")
	cmd.Flags().StringVar(&opts.Plot, "plot", "", "Column to chart")
	cmd.Flags().StringVar(&opts.PlotType, "plot-type", "", "Chart type (bar|pie|line|doughnut|histogram)")
	_ = cmd.RegisterFlagCompletionFunc("plot-type", completePlotTypes)

	return cmd
}

// analyzeFile runs every requested step and prints the final view once.
// It stops at the first failing step.
func analyzeFile(ctx context.Context, cc *CommandContext, svc analysis.Service, path string, opts *AnalyzeOptions) error {
	term := cc.NewTerminal(cc.Renderer, render.Deferred())
	orch := cc.NewOrchestrator(svc, term)
	defer term.Flush()

	if err := orch.SelectFile(ctx, session.NewLocalFile(path)); err != nil {
		return err
	}

	if len(opts.Stats) > 0 {
		if err := orch.SelectStatsColumns(opts.Stats...); err != nil {
			return err
		}
		if err := orch.FetchDescriptiveStats(ctx); err != nil {
			return err
		}
	}

	if opts.Plot != "" || opts.PlotType != "" {
		column := opts.Plot
		if column == "" {
			column = orch.Session().SelectedPlotColumn
		}
		if err := orch.SelectPlot(column, opts.PlotType); err != nil {
			return err
		}
		if err := orch.GeneratePlot(ctx); err != nil {
			return err
		}
	}

	return nil
}
