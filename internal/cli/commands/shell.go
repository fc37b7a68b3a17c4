package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/csvscope/internal/analysis"
	"github.com/leapstack-labs/csvscope/internal/cli/output"
	"github.com/leapstack-labs/csvscope/internal/render"
	"github.com/leapstack-labs/csvscope/internal/session"
	"github.com/leapstack-labs/csvscope/internal/watch"
)

const shellPrompt = "csvscope> "

// ShellOptions holds options for the shell command.
type ShellOptions struct {
	Watch bool
}

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	opts := &ShellOptions{}

	cmd := &cobra.Command{
		Use:   "shell [file.csv]",
		Short: "Explore CSV files interactively",
		Long: `Start an interactive session. Open a CSV file, pick numeric columns
for descriptive statistics and chart any column. Every change redraws the
current view.`,
		Example: `  # Start empty and open a file from the prompt
  csvscope shell

  # Open a file and re-analyze it whenever it is saved
  csvscope shell data.csv --watch`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeCSVFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-analyze the open file when it changes on disk")

	return cmd
}

func runShell(cmd *cobra.Command, args []string, opts *ShellOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cc := NewCommandContext(cmd)
	sh := &shell{cc: cc}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     cc.Cfg.Shell.HistoryFile,
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// Async redraws from the watcher must go through readline so the
	// prompt is restored.
	out := output.NewRendererWithTTY(rl.Stdout(), rl.Stderr(), cc.Renderer.IsTTY(), cc.Renderer.Mode())
	sh.init(out, cc.NewClient())

	if opts.Watch {
		w, err := watch.New(cc.Cfg.Shell.WatchDebounce, func(string) { sh.reanalyze(ctx) }, cc.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		sh.watcher = w
		go func() { _ = w.Run(ctx) }()
	}

	out.Println("csvscope shell (service: " + cc.Cfg.ServiceURL + ")")
	out.Println("Type help for commands, quit to exit")
	out.Println("")

	if len(args) == 1 {
		sh.exec(ctx, "open "+args[0])
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if quit := sh.exec(ctx, line); quit {
			break
		}
	}
	return nil
}

// shell executes one command line at a time against an orchestrator.
type shell struct {
	cc      *CommandContext
	out     *output.Renderer
	term    *render.Terminal
	orch    *analysis.Orchestrator
	watcher *watch.Watcher
}

func (sh *shell) init(out *output.Renderer, svc analysis.Service) {
	sh.out = out
	sh.term = sh.cc.NewTerminal(out)
	sh.orch = sh.cc.NewOrchestrator(svc, sh.term)
}

// exec runs line and reports whether the shell should exit. Orchestrator
// errors are already part of the redrawn view and are only logged here.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch command {
	case "quit", "exit":
		return true

	case "help":
		printShellHelp(sh.out.Writer())
		return false

	case "open":
		if len(args) == 0 {
			sh.out.Error("usage: open <file.csv>")
			return false
		}
		err = sh.open(ctx, strings.Join(args, " "))

	case "rows":
		if len(args) != 1 {
			sh.out.Error("usage: rows <n>")
			return false
		}
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			sh.out.Error(fmt.Sprintf("not a number: %s", args[0]))
			return false
		}
		err = sh.orch.SetRowPreviewCount(ctx, n)

	case "select":
		err = sh.orch.SelectStatsColumns(splitColumns(args)...)

	case "stats":
		if len(args) > 0 {
			if err = sh.orch.SelectStatsColumns(splitColumns(args)...); err != nil {
				break
			}
		}
		err = sh.orch.FetchDescriptiveStats(ctx)

	case "plot":
		if len(args) > 0 {
			plotType := ""
			if len(args) > 1 {
				plotType = args[1]
			}
			if err = sh.orch.SelectPlot(args[0], plotType); err != nil {
				break
			}
		}
		err = sh.orch.GeneratePlot(ctx)

	case "reset":
		if sh.watcher != nil {
			sh.watcher.Unwatch()
		}
		sh.orch.Reset()

	case "view":
		sh.term.Render(sh.orch.View())

	default:
		sh.out.Error(fmt.Sprintf("unknown command: %s (type help for commands)", command))
		return false
	}

	if err != nil {
		sh.cc.Logger.Debug("command failed", "command", command, "error", err)
	}
	return false
}

func (sh *shell) open(ctx context.Context, path string) error {
	if sh.watcher != nil && session.Accepts(path) {
		if err := sh.watcher.Watch(path); err != nil {
			sh.cc.Logger.Warn("cannot watch file", "path", path, "error", err)
		}
	}
	return sh.orch.SelectFile(ctx, session.NewLocalFile(path))
}

// reanalyze runs when the watched file changes. A reset session is left
// alone.
func (sh *shell) reanalyze(ctx context.Context) {
	if !sh.orch.Session().Active() {
		return
	}
	if err := sh.orch.RunStructuralAnalysis(ctx); err != nil {
		sh.cc.Logger.Debug("re-analysis failed", "error", err)
	}
}

// splitColumns accepts both "a b" and "a,b".
func splitColumns(args []string) []string {
	var cols []string
	for _, arg := range args {
		for _, c := range strings.Split(arg, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func (sh *shell) completer() *readline.PrefixCompleter {
	columns := func(string) []string {
		if sh.orch == nil {
			return nil
		}
		return sh.orch.Session().ColumnNames()
	}
	numeric := func(string) []string {
		if sh.orch == nil {
			return nil
		}
		return sh.orch.Session().NumericColumns()
	}
	types := make([]readline.PrefixCompleterInterface, len(plotTypes))
	for i, t := range plotTypes {
		types[i] = readline.PcItem(t)
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("open", readline.PcItemDynamic(csvFilesInDir)),
		readline.PcItem("rows"),
		readline.PcItem("select", readline.PcItemDynamic(numeric)),
		readline.PcItem("stats", readline.PcItemDynamic(numeric)),
		readline.PcItem("plot", readline.PcItemDynamic(columns, types...)),
		readline.PcItem("reset"),
		readline.PcItem("view"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
		readline.PcItem("exit"),
	)
}

// csvFilesInDir lists the CSV files in the working directory.
func csvFilesInDir(string) []string {
	entries, err := os.ReadDir(".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && session.Accepts(e.Name()) {
			names = append(names, filepath.Base(e.Name()))
		}
	}
	return names
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  open <file.csv>          Select a file and analyze its structure
  rows <n>                 Set the number of preview rows and re-analyze
  select <col>...          Choose numeric columns for statistics
  stats [col...]           Fetch descriptive statistics
  plot [col] [type]        Draw a chart (bar, pie, line, doughnut, histogram)
  reset                    Discard the current file
  view                     Redraw the current view
  help                     Show this help message
  quit / exit              Leave the shell

Tips:
  - Columns may be separated by spaces or commas
  - Tab completes commands, column names and plot types
`
	_, _ = fmt.Fprintln(w, help)
}
