package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/csvscope/internal/analysis"
	"github.com/leapstack-labs/csvscope/internal/cli/config"
	"github.com/leapstack-labs/csvscope/internal/cli/output"
	"github.com/leapstack-labs/csvscope/internal/client"
	"github.com/leapstack-labs/csvscope/internal/render"
)

// plotTypes are offered for completion of plot type arguments.
var plotTypes = []string{"bar", "pie", "line", "doughnut", "histogram"}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when none
// was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// NewClient creates a client for the configured analysis service.
func (cc *CommandContext) NewClient() *client.Client {
	return client.New(cc.Cfg.ServiceURL,
		client.WithTimeout(cc.Cfg.Timeout),
		client.WithLogger(cc.Logger),
	)
}

// NewTerminal creates a terminal renderer on out with the configured PNG
// export directory.
func (cc *CommandContext) NewTerminal(out *output.Renderer, opts ...render.Option) *render.Terminal {
	opts = append([]render.Option{
		render.WithLogger(cc.Logger),
		render.WithPNGDir(cc.Cfg.Plot.PNGDir),
	}, opts...)
	return render.NewTerminal(out, opts...)
}

// NewOrchestrator wires an orchestrator to svc and r.
func (cc *CommandContext) NewOrchestrator(svc analysis.Service, r analysis.Renderer) *analysis.Orchestrator {
	return analysis.New(svc, r,
		analysis.WithLogger(cc.Logger),
		analysis.WithRowPreviewCount(cc.Cfg.Rows),
		analysis.WithDefaultPlotType(cc.Cfg.Plot.DefaultType),
	)
}

func completePlotTypes(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return plotTypes, cobra.ShellCompDirectiveNoFileComp
}

func completeCSVFiles(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"csv"}, cobra.ShellCompDirectiveFilterFileExt
}
