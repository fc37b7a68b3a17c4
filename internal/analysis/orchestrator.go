// Package analysis sequences the remote calls made for the current file and
// derives the view state from their outcomes.
//
// The Orchestrator is the only writer of the session. Every operation tags
// its request with a per-operation sequence number; a response is applied
// only if no newer request of the same kind was issued and the session it
// belongs to is still current. Superseded requests are cancelled.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/csvscope/internal/client"
	"github.com/leapstack-labs/csvscope/internal/session"
)

// Service is the remote analysis service.
type Service interface {
	Analyze(ctx context.Context, file client.Source, rows int) (*client.AnalyzeResult, error)
	Describe(ctx context.Context, file client.Source, columns []string) (*client.DescribeResult, error)
	Plot(ctx context.Context, file client.Source, plotType, column string) (*client.PlotResult, error)
}

// ChartData is what a renderer needs to draw one chart.
type ChartData struct {
	Column   string    `json:"column"`
	PlotType string    `json:"plot_type"`
	Labels   []string  `json:"labels"`
	Data     []float64 `json:"data"`
}

// Chart is a live chart instance owned by the orchestrator.
type Chart interface {
	Destroy() error
}

// Renderer presents view states and charts. Render is called with the
// orchestrator's lock held and must not call back into the orchestrator.
type Renderer interface {
	Render(v ViewState)
	DrawChart(data ChartData) (Chart, error)
}

// Default plot settings.
const (
	DefaultPlotType = "bar"
)

// Validation messages.
const (
	msgInvalidFile  = "Invalid file type. Please upload a CSV file."
	msgNoFile       = "No file selected. Please choose a CSV file first."
	msgInvalidRows  = "The number of preview rows must be a positive integer."
	msgNotReady     = "The file has not been analyzed yet."
	msgNoStatsCols  = "Please select at least one numeric column to describe."
	msgNoPlotTarget = "Please choose a column and a plot type."
)

// Orchestrator owns the session and drives the analysis service.
type Orchestrator struct {
	mu       sync.Mutex
	svc      Service
	renderer Renderer
	logger   *slog.Logger

	sess    *session.Session
	last    Outcome
	view    ViewState
	seq     map[Op]uint64
	cancels map[Op]context.CancelFunc
	chart   Chart

	rows     int
	plotType string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRowPreviewCount sets the initial number of preview rows.
func WithRowPreviewCount(n int) Option {
	return func(o *Orchestrator) {
		o.rows = n
	}
}

// WithDefaultPlotType sets the plot type selected after each analysis.
func WithDefaultPlotType(t string) Option {
	return func(o *Orchestrator) {
		if t != "" {
			o.plotType = t
		}
	}
}

// New creates an Orchestrator with an empty session.
func New(svc Service, r Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		svc:      svc,
		renderer: r,
		logger:   slog.New(slog.DiscardHandler),
		seq:      make(map[Op]uint64),
		cancels:  make(map[Op]context.CancelFunc),
		rows:     session.DefaultRowPreviewCount,
		plotType: DefaultPlotType,
		view:     InitialView(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sess = session.New(o.rows, o.plotType)
	return o
}

// View returns the most recently derived view state.
func (o *Orchestrator) View() ViewState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

// Session returns a snapshot of the session.
func (o *Orchestrator) Session() *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.Clone()
}

// LastOutcome returns the outcome of the most recent transition.
func (o *Orchestrator) LastOutcome() Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// SelectFile starts a new session for file and runs its structural analysis.
// A file that fails the accepted-format check leaves the current session
// untouched and never reaches the network.
func (o *Orchestrator) SelectFile(ctx context.Context, file session.File) error {
	o.mu.Lock()
	if err := o.sess.Begin(file); err != nil {
		verr := &ValidationError{Message: msgInvalidFile, Cause: err}
		if file == nil {
			verr.Message = msgNoFile
		}
		o.publish(Outcome{Op: OpSelectFile, Err: verr})
		o.mu.Unlock()
		return verr
	}
	o.cancelAll()
	o.destroyChart()
	o.logger.Info("file selected", "file", file.Name(), "session", o.sess.ID)

	req, err := o.startAnalysis(ctx)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	return o.awaitAnalysis(req)
}

// SetRowPreviewCount changes the number of preview rows and re-runs the
// structural analysis if a file is selected.
func (o *Orchestrator) SetRowPreviewCount(ctx context.Context, n int) error {
	o.mu.Lock()
	if n < 1 {
		err := validationError(msgInvalidRows)
		o.publish(Outcome{Op: OpSetRows, Err: err})
		o.mu.Unlock()
		return err
	}
	o.sess.RowPreviewCount = n
	if !o.sess.Active() {
		o.publish(Outcome{Op: OpSetRows})
		o.mu.Unlock()
		return nil
	}

	req, err := o.startAnalysis(ctx)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	return o.awaitAnalysis(req)
}

// RunStructuralAnalysis (re)analyzes the selected file. If a newer analysis
// starts before this one's response arrives, the response is dropped and
// ErrSuperseded is returned.
func (o *Orchestrator) RunStructuralAnalysis(ctx context.Context) error {
	o.mu.Lock()
	req, err := o.startAnalysis(ctx)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	return o.awaitAnalysis(req)
}

type request struct {
	ctx  context.Context
	op   Op
	seq  uint64
	id   string
	file session.File
}

type analysisRequest struct {
	request
	rows int
}

func (o *Orchestrator) startAnalysis(ctx context.Context) (*analysisRequest, error) {
	if !o.sess.Active() {
		err := validationError(msgNoFile)
		o.publish(Outcome{Op: OpAnalyze, Err: err})
		return nil, err
	}

	// Stats and plots describe the previous analysis; their answers must
	// not land in the panels this one clears.
	o.invalidate(OpDescribe, OpPlot)
	req := &analysisRequest{request: o.issue(ctx, OpAnalyze), rows: o.sess.RowPreviewCount}
	o.sess.ClearResults()
	o.sess.Phase = session.PhaseAnalyzing
	o.publish(Outcome{Op: OpAnalyze, Pending: true})

	o.logger.Debug("structural analysis started", "file", req.file.Name(), "rows", req.rows, "seq", req.seq)
	return req, nil
}

func (o *Orchestrator) awaitAnalysis(req *analysisRequest) error {
	res, err := o.svc.Analyze(req.ctx, req.file, req.rows)
	var cols []session.Column
	if err == nil {
		cols, err = columnsFromAnalysis(res)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.settle(req.request) {
		return ErrSuperseded
	}

	if err != nil {
		o.sess.Phase = session.PhaseError
		o.sess.AnalysisErr = err.Error()
		o.logFailure("structural analysis failed", err, "file", req.file.Name())
		o.publish(Outcome{Op: OpAnalyze, Err: err})
		return fmt.Errorf("analyze %s: %w", req.file.Name(), err)
	}

	o.sess.Summary = session.Summary{Filename: res.Filename, Rows: res.Rows, Columns: res.Columns}
	o.sess.HeadHTML = res.HeadHTML
	o.sess.SetColumns(cols)
	o.sess.Phase = session.PhaseReady
	o.logger.Info("structural analysis completed",
		"file", res.Filename, "rows", res.Rows, "columns", res.Columns,
		"numeric", len(o.sess.NumericColumns()))
	o.publish(Outcome{Op: OpAnalyze})
	return nil
}

// columnsFromAnalysis converts the service description and enforces the
// contract: unique names, non-negative counts and the same row total for
// every column.
func columnsFromAnalysis(res *client.AnalyzeResult) ([]session.Column, error) {
	if res == nil {
		return nil, contractError("analyze", "the analysis service returned an empty response")
	}
	if res.Columns != len(res.Description) {
		return nil, contractError("analyze", fmt.Sprintf(
			"the analysis service reported %d columns but described %d", res.Columns, len(res.Description)))
	}

	cols := make([]session.Column, 0, len(res.Description))
	seen := make(map[string]bool, len(res.Description))
	for _, d := range res.Description {
		if seen[d.Column] {
			return nil, contractError("analyze", fmt.Sprintf("the analysis service reported column %q twice", d.Column))
		}
		seen[d.Column] = true

		if d.NonNullCount < 0 || d.NullCount < 0 {
			return nil, contractError("analyze", fmt.Sprintf("the analysis service reported negative counts for column %q", d.Column))
		}
		col := session.Column{
			Name:         d.Column,
			DType:        session.ParseDType(d.DType),
			RawType:      d.DType,
			NonNullCount: d.NonNullCount,
			NullCount:    d.NullCount,
		}
		if col.Total() != res.Rows {
			return nil, contractError("analyze", fmt.Sprintf(
				"inconsistent row counts: column %q covers %d rows, file has %d", d.Column, col.Total(), res.Rows))
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// SelectStatsColumns replaces the set of columns used for descriptive
// statistics. Every name must be a numeric column of the current analysis.
func (o *Orchestrator) SelectStatsColumns(names ...string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requireReady(OpSelectStats); err != nil {
		return err
	}
	numeric := o.sess.NumericColumns()
	var selected []string
	for _, name := range names {
		if !slices.Contains(numeric, name) {
			err := validationError(fmt.Sprintf("Column %q is not a numeric column of %s.", name, o.sess.File.Name()))
			o.publish(Outcome{Op: OpSelectStats, Err: err})
			return err
		}
		if !slices.Contains(selected, name) {
			selected = append(selected, name)
		}
	}
	o.sess.SelectedStatsColumns = selected
	o.publish(Outcome{Op: OpSelectStats})
	return nil
}

// SelectPlot chooses the plot column and type. An empty plotType keeps the
// current one. Whether a type suits a column is left to the service.
func (o *Orchestrator) SelectPlot(column, plotType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.requireReady(OpSelectPlot); err != nil {
		return err
	}
	if _, ok := o.sess.Column(column); !ok {
		err := validationError(fmt.Sprintf("Column %q does not exist in %s.", column, o.sess.File.Name()))
		o.publish(Outcome{Op: OpSelectPlot, Err: err})
		return err
	}
	o.sess.SelectedPlotColumn = column
	if plotType != "" {
		o.sess.SelectedPlotType = plotType
	}
	o.publish(Outcome{Op: OpSelectPlot})
	return nil
}

func (o *Orchestrator) requireReady(op Op) error {
	var err error
	switch {
	case !o.sess.Active():
		err = validationError(msgNoFile)
	case o.sess.Phase != session.PhaseReady:
		err = validationError(msgNotReady)
	}
	if err != nil {
		o.publish(Outcome{Op: op, Err: err})
	}
	return err
}

// FetchDescriptiveStats requests statistics for the selected numeric
// columns. Only the stats panel changes, whatever the outcome.
func (o *Orchestrator) FetchDescriptiveStats(ctx context.Context) error {
	o.mu.Lock()
	if err := o.requireReady(OpDescribe); err != nil {
		o.mu.Unlock()
		return err
	}
	if len(o.sess.SelectedStatsColumns) == 0 {
		err := validationError(msgNoStatsCols)
		o.publish(Outcome{Op: OpDescribe, Err: err})
		o.mu.Unlock()
		return err
	}
	req := o.issue(ctx, OpDescribe)
	columns := append([]string(nil), o.sess.SelectedStatsColumns...)
	o.sess.StatsPending = true
	o.sess.StatsErr = ""
	o.publish(Outcome{Op: OpDescribe, Pending: true})
	o.mu.Unlock()

	res, err := o.svc.Describe(req.ctx, req.file, columns)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.settle(req) {
		return ErrSuperseded
	}
	o.sess.StatsPending = false
	if err != nil {
		o.sess.StatsHTML = ""
		o.sess.StatsErr = err.Error()
		o.logFailure("descriptive statistics failed", err, "columns", columns)
		o.publish(Outcome{Op: OpDescribe, Err: err})
		return fmt.Errorf("describe %v: %w", columns, err)
	}
	o.sess.StatsHTML = res.StatsHTML
	o.logger.Debug("descriptive statistics completed", "columns", columns)
	o.publish(Outcome{Op: OpDescribe})
	return nil
}

// GeneratePlot requests the distribution of the selected plot column and
// hands it to the renderer. The previous chart is destroyed before the new
// one is drawn, so at most one chart is live.
func (o *Orchestrator) GeneratePlot(ctx context.Context) error {
	o.mu.Lock()
	if err := o.requireReady(OpPlot); err != nil {
		o.mu.Unlock()
		return err
	}
	column, plotType := o.sess.SelectedPlotColumn, o.sess.SelectedPlotType
	if column == "" || plotType == "" {
		err := validationError(msgNoPlotTarget)
		o.publish(Outcome{Op: OpPlot, Err: err})
		o.mu.Unlock()
		return err
	}
	req := o.issue(ctx, OpPlot)
	o.mu.Unlock()

	res, err := o.svc.Plot(req.ctx, req.file, plotType, column)
	if err == nil && len(res.Labels) != len(res.Data) {
		err = contractError("plot", fmt.Sprintf(
			"the analysis service returned %d labels for %d values", len(res.Labels), len(res.Data)))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.settle(req) || o.sess.Phase != session.PhaseReady {
		return ErrSuperseded
	}
	if err != nil {
		o.logFailure("plot failed", err, "column", column, "type", plotType)
		o.publish(Outcome{Op: OpPlot, Err: err})
		return fmt.Errorf("plot %s: %w", column, err)
	}

	o.destroyChart()
	chart, err := o.renderer.DrawChart(ChartData{
		Column:   column,
		PlotType: plotType,
		Labels:   res.Labels,
		Data:     res.Data,
	})
	if err != nil {
		o.publish(Outcome{Op: OpPlot, Err: err})
		return fmt.Errorf("draw chart: %w", err)
	}
	o.chart = chart
	o.publish(Outcome{Op: OpPlot})
	return nil
}

// Reset abandons every outstanding request, destroys the chart and returns
// to the initial empty layout.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelAll()
	o.destroyChart()
	o.sess.Reset()
	o.logger.Debug("session reset")
	o.publish(Outcome{Op: OpReset})
}

// issue tags a new request of kind op, cancelling the one it supersedes.
func (o *Orchestrator) issue(ctx context.Context, op Op) request {
	if cancel, ok := o.cancels[op]; ok {
		cancel()
	}
	o.seq[op]++
	rctx, cancel := context.WithCancel(ctx)
	o.cancels[op] = cancel
	return request{ctx: rctx, op: op, seq: o.seq[op], id: o.sess.ID, file: o.sess.File}
}

// settle reports whether req is still the latest of its kind for the
// current session, releasing its context either way.
func (o *Orchestrator) settle(req request) bool {
	if o.seq[req.op] != req.seq {
		o.logger.Debug("discarding stale response", "op", req.op, "seq", req.seq, "latest", o.seq[req.op])
		return false
	}
	if cancel, ok := o.cancels[req.op]; ok {
		cancel()
		delete(o.cancels, req.op)
	}
	if !o.sess.Active() || o.sess.ID != req.id {
		o.logger.Debug("discarding response for previous session", "op", req.op, "session", req.id)
		return false
	}
	return true
}

// cancelAll cancels and invalidates every outstanding request.
func (o *Orchestrator) cancelAll() {
	o.invalidate(OpAnalyze, OpDescribe, OpPlot)
}

// invalidate cancels the outstanding requests of the given kinds so their
// responses settle as superseded.
func (o *Orchestrator) invalidate(ops ...Op) {
	for _, op := range ops {
		if cancel, ok := o.cancels[op]; ok {
			cancel()
			delete(o.cancels, op)
		}
		o.seq[op]++
	}
}

func (o *Orchestrator) logFailure(msg string, err error, args ...any) {
	if isCancellation(err) {
		o.logger.Info(msg, append(args, "error", err)...)
		return
	}
	o.logger.Warn(msg, append(args, "kind", KindOf(err), "error", err)...)
}

func (o *Orchestrator) destroyChart() {
	if o.chart == nil {
		return
	}
	if err := o.chart.Destroy(); err != nil {
		o.logger.Warn("failed to destroy chart", "error", err)
	}
	o.chart = nil
}

// publish records the outcome and re-derives the whole view from scratch.
func (o *Orchestrator) publish(out Outcome) {
	o.last = out
	o.view = DeriveView(o.sess, out)
	if o.renderer != nil {
		o.renderer.Render(o.view)
	}
}
