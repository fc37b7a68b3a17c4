// Package render presents analysis view states and charts on a terminal.
package render

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/csvscope/internal/analysis"
	"github.com/leapstack-labs/csvscope/internal/cli/output"
	"github.com/leapstack-labs/csvscope/internal/session"
)

// barWidth is the width of the longest bar in a text chart.
const barWidth = 40

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

var _ analysis.Renderer = (*Terminal)(nil)

// Terminal implements analysis.Renderer on an output.Renderer.
type Terminal struct {
	out    *output.Renderer
	logger *slog.Logger
	pngDir string

	// deferred terminals keep only the latest view and chart until Flush.
	deferred bool

	mu     sync.Mutex
	nextID int
	live   map[int]*Instance
	last   *analysis.ViewState
	chart  *Instance
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Terminal) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithPNGDir exports every chart as a PNG file into dir.
func WithPNGDir(dir string) Option {
	return func(t *Terminal) {
		t.pngDir = dir
	}
}

// Deferred makes Render and DrawChart only record their input. Flush
// writes the latest view followed by the live chart.
func Deferred() Option {
	return func(t *Terminal) {
		t.deferred = true
	}
}

// NewTerminal creates a terminal renderer writing to out.
func NewTerminal(out *output.Renderer, opts ...Option) *Terminal {
	t := &Terminal{
		out:    out,
		logger: slog.New(slog.DiscardHandler),
		live:   make(map[int]*Instance),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Instance is a drawn chart.
type Instance struct {
	ID      int
	Data    analysis.ChartData
	PNGPath string

	t *Terminal
}

// Destroy releases the chart. It is safe to call more than once.
func (c *Instance) Destroy() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	delete(c.t.live, c.ID)
	if c.t.chart == c {
		c.t.chart = nil
	}
	return nil
}

// Live returns the number of charts not yet destroyed.
func (t *Terminal) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Render writes v, or records it when deferred.
func (t *Terminal) Render(v analysis.ViewState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deferred {
		t.last = &v
		return
	}
	t.writeView(v)
}

// DrawChart draws data and returns the live instance.
func (t *Terminal) DrawChart(data analysis.ChartData) (analysis.Chart, error) {
	if len(data.Labels) != len(data.Data) {
		return nil, fmt.Errorf("chart for %q has %d labels and %d values", data.Column, len(data.Labels), len(data.Data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	inst := &Instance{ID: t.nextID, Data: data, t: t}
	if t.pngDir != "" {
		path, err := writePNG(t.pngDir, data, inst.ID)
		if err != nil {
			t.logger.Warn("failed to export chart", "column", data.Column, "type", data.PlotType, "error", err)
		} else {
			inst.PNGPath = path
			t.logger.Info("chart exported", "path", path)
		}
	}
	t.live[inst.ID] = inst
	t.chart = inst

	if !t.deferred {
		t.writeChart(inst)
	}
	return inst, nil
}

// Flush writes the latest recorded view and the live chart.
func (t *Terminal) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last != nil {
		t.writeView(*t.last)
	}
	if t.chart != nil {
		t.writeChart(t.chart)
	}
}

func (t *Terminal) writeView(v analysis.ViewState) {
	switch t.out.EffectiveMode() {
	case output.ModeJSON:
		if err := t.out.JSON(v); err != nil {
			t.logger.Error("failed to write view", "error", err)
		}
	case output.ModeMarkdown:
		t.viewMarkdown(v)
	default:
		t.viewText(v)
	}
}

func (t *Terminal) writeChart(c *Instance) {
	switch t.out.EffectiveMode() {
	case output.ModeJSON:
		if err := t.out.JSON(chartJSON{ChartData: c.Data, PNGPath: c.PNGPath}); err != nil {
			t.logger.Error("failed to write chart", "error", err)
		}
	case output.ModeMarkdown:
		t.chartMarkdown(c)
	default:
		t.chartText(c)
	}
}

type chartJSON struct {
	analysis.ChartData
	PNGPath string `json:"png_path,omitempty"`
}

func (t *Terminal) viewText(v analysis.ViewState) {
	r := t.out
	styles := r.Styles()

	if v.Alert != "" {
		r.Error(v.Alert)
	}

	switch {
	case v.UploadPrompt:
		r.Println(styles.Muted.Render(fmt.Sprintf("No file selected (%s).", v.FileLabel)))
		return
	case v.Loading:
		r.Println(styles.Muted.Render(fmt.Sprintf("Analyzing %s...", v.FileLabel)))
		return
	case v.ErrorBanner:
		r.Println(styles.Error.Render(v.ErrorText))
		r.Println(styles.Muted.Render("[" + v.ResetLabel + "]"))
		return
	}

	if v.Summary {
		r.Header(1, "Summary")
		r.Println(v.SummaryText)
		r.Println("")
	}
	if v.Preview {
		r.Header(2, "Preview")
		r.Println(prettyTable(v.HeadHTML))
		r.Println("")
	}
	if v.Description {
		r.Header(2, "Columns")
		r.Println(columnsTable(v.Columns).Render())
		r.Println("")
	}
	if v.StatsPanel {
		r.Header(2, "Descriptive Statistics")
		r.Printf("  %s %s\n", styles.Muted.Render("numeric:"), optionList(v.StatsOptions, v.StatsSelected, styles.ColumnName.Render))
		switch {
		case v.StatsLoading:
			r.Println(styles.Muted.Render("  Loading..."))
		case v.StatsError != "":
			r.Println(styles.Error.Render("  " + v.StatsError))
		case v.StatsHTML != "":
			r.Println(prettyTable(v.StatsHTML))
		}
		r.Println("")
	}
	if v.PlotPanel {
		r.Header(2, "Plot")
		r.Printf("  %s %s\n", styles.Muted.Render("column:"), optionList(v.PlotOptions, []string{v.PlotColumn}, styles.ColumnName.Render))
		r.Printf("  %s %s\n", styles.Muted.Render("type:"), v.PlotType)
		r.Println("")
	}
	r.Println(styles.Muted.Render("[" + v.ResetLabel + "]"))
}

// optionList marks selected options with an asterisk.
func optionList(options, selected []string, highlight func(...string) string) string {
	parts := make([]string, len(options))
	for i, o := range options {
		if slices.Contains(selected, o) {
			parts[i] = highlight("*" + o)
			continue
		}
		parts[i] = o
	}
	return strings.Join(parts, ", ")
}

func columnsTable(cols []session.Column) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Column", "Type", "Non-Null", "Null"})
	for _, c := range cols {
		tw.AppendRow(table.Row{c.Name, c.RawType, c.NonNullCount, c.NullCount})
	}
	return tw
}

func (t *Terminal) viewMarkdown(v analysis.ViewState) {
	r := t.out

	if v.Alert != "" {
		r.Printf("> **%s error:** %s\n\n", titleCase(v.AlertKind), v.Alert)
	}

	switch {
	case v.UploadPrompt:
		r.Printf("_No file selected (%s)._\n\n", v.FileLabel)
		return
	case v.Loading:
		r.Printf("_Analyzing %s..._\n\n", v.FileLabel)
		return
	case v.ErrorBanner:
		r.Printf("**Error:** %s\n\n", v.ErrorText)
		return
	}

	if v.Summary {
		r.Header(1, "Summary")
		r.Println(v.SummaryText)
		r.Println("")
	}
	if v.Preview {
		r.Header(2, "Preview")
		t.fragmentMarkdown(v.HeadHTML)
	}
	if v.Description {
		r.Header(2, "Columns")
		r.Println(columnsTable(v.Columns).RenderMarkdown())
		r.Println("")
	}
	if v.StatsPanel {
		r.Header(2, "Descriptive Statistics")
		r.Println(output.FormatKeyValue("Numeric columns", strings.Join(v.StatsOptions, ", ")))
		r.Println(output.FormatKeyValue("Selected", strings.Join(v.StatsSelected, ", ")))
		r.Println("")
		switch {
		case v.StatsLoading:
			r.Println("_Loading..._")
			r.Println("")
		case v.StatsError != "":
			r.Printf("**Error:** %s\n\n", v.StatsError)
		case v.StatsHTML != "":
			t.fragmentMarkdown(v.StatsHTML)
		}
	}
	if v.PlotPanel {
		r.Header(2, "Plot")
		r.Println(output.FormatKeyValue("Column", v.PlotColumn))
		r.Println(output.FormatKeyValue("Type", v.PlotType))
		r.Println("")
	}
}

func (t *Terminal) fragmentMarkdown(fragment string) {
	md, err := markdownTable(fragment)
	if err != nil {
		t.logger.Warn("falling back to raw HTML", "error", err)
		md = fragment
	}
	t.out.Println(md)
	t.out.Println("")
}

func (t *Terminal) chartText(c *Instance) {
	r := t.out
	styles := r.Styles()

	r.Header(2, fmt.Sprintf("%s of %s", titleCase(c.Data.PlotType), c.Data.Column))
	for _, line := range barLines(c.Data, func(s string) string { return styles.Bar.Render(s) }) {
		r.Println("  " + line)
	}
	if c.PNGPath != "" {
		r.Println(styles.Muted.Render("  saved to " + c.PNGPath))
	}
	r.Println("")
}

func (t *Terminal) chartMarkdown(c *Instance) {
	r := t.out
	r.Header(2, fmt.Sprintf("%s of %s", titleCase(c.Data.PlotType), c.Data.Column))

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Label", "Value"})
	for i, l := range c.Data.Labels {
		tw.AppendRow(table.Row{l, c.Data.Data[i]})
	}
	r.Println(tw.RenderMarkdown())
	if c.PNGPath != "" {
		r.Printf("\n![%s](%s)\n", c.Data.Column, c.PNGPath)
	}
	r.Println("")
}

// barLines draws one horizontal bar per label, scaled to the largest
// value. Pie and doughnut charts also show each share of the total.
func barLines(data analysis.ChartData, paint func(string) string) []string {
	var peak, total float64
	labelWidth := 0
	for i, v := range data.Data {
		peak = max(peak, v)
		total += v
		labelWidth = max(labelWidth, len([]rune(data.Labels[i])))
	}
	share := data.PlotType == "pie" || data.PlotType == "doughnut"

	lines := make([]string, len(data.Data))
	for i, v := range data.Data {
		n := 0
		if peak > 0 && v > 0 {
			n = max(1, int(v/peak*barWidth+0.5))
		}
		label := data.Labels[i] + strings.Repeat(" ", labelWidth-len([]rune(data.Labels[i])))
		line := fmt.Sprintf("%s %s %g", label, paint(strings.Repeat("█", n)), v)
		if share && total > 0 {
			line += fmt.Sprintf(" (%.1f%%)", v/total*100)
		}
		lines[i] = line
	}
	return lines
}
