package analysis

import (
	"fmt"

	"github.com/leapstack-labs/csvscope/internal/session"
)

// Button and placeholder labels.
const (
	LabelAnalyzeAnother = "Analyze Another"
	LabelTryAgain       = "Try Again"
	LabelNoFile         = "CSV files only"
)

// Op names the transition that produced an Outcome.
type Op int

const (
	OpNone Op = iota
	OpSelectFile
	OpSetRows
	OpAnalyze
	OpSelectStats
	OpSelectPlot
	OpDescribe
	OpPlot
	OpReset
)

func (o Op) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpSelectFile:
		return "select-file"
	case OpSetRows:
		return "set-rows"
	case OpAnalyze:
		return "analyze"
	case OpSelectStats:
		return "select-stats"
	case OpSelectPlot:
		return "select-plot"
	case OpDescribe:
		return "describe"
	case OpPlot:
		return "plot"
	case OpReset:
		return "reset"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Outcome is the result of the most recent transition.
type Outcome struct {
	Op      Op
	Pending bool
	Err     error
}

// ViewState is everything a renderer needs. It is derived, never patched.
type ViewState struct {
	Phase string `json:"phase"`

	UploadPrompt bool `json:"upload_prompt"`
	Results      bool `json:"results"`
	Loading      bool `json:"loading"`
	Summary      bool `json:"summary"`
	Preview      bool `json:"preview"`
	Description  bool `json:"description"`
	StatsPanel   bool `json:"stats_panel"`
	PlotPanel    bool `json:"plot_panel"`
	ErrorBanner  bool `json:"error_banner"`

	ErrorText  string `json:"error_text,omitempty"`
	Alert      string `json:"alert,omitempty"`
	AlertKind  string `json:"alert_kind,omitempty"`
	ResetLabel string `json:"reset_label"`
	FileLabel  string `json:"file_label"`

	SummaryText string           `json:"summary_text,omitempty"`
	HeadHTML    string           `json:"head_html,omitempty"`
	Columns     []session.Column `json:"columns,omitempty"`

	StatsOptions  []string `json:"stats_options,omitempty"`
	StatsSelected []string `json:"stats_selected,omitempty"`
	StatsLoading  bool     `json:"stats_loading"`
	StatsHTML     string   `json:"stats_html,omitempty"`
	StatsError    string   `json:"stats_error,omitempty"`

	PlotOptions []string `json:"plot_options,omitempty"`
	PlotColumn  string   `json:"plot_column,omitempty"`
	PlotType    string   `json:"plot_type,omitempty"`
}

// InitialView is the layout shown before any file is chosen.
func InitialView() ViewState {
	return ViewState{
		Phase:        session.PhaseEmpty.String(),
		UploadPrompt: true,
		ResetLabel:   LabelAnalyzeAnother,
		FileLabel:    LabelNoFile,
	}
}

// DeriveView computes the view from the session and the last outcome.
func DeriveView(s *session.Session, last Outcome) ViewState {
	v := InitialView()
	if s != nil && s.Active() {
		v.FileLabel = s.File.Name()
	}
	v.applyAlert(last)

	if s == nil || !s.Active() {
		return v
	}

	v.Phase = s.Phase.String()
	v.UploadPrompt = false
	v.Results = true

	switch s.Phase {
	case session.PhaseAnalyzing:
		v.Loading = true

	case session.PhaseError:
		v.ErrorBanner = true
		v.ErrorText = s.AnalysisErr
		v.ResetLabel = LabelTryAgain

	case session.PhaseReady:
		v.Summary = true
		v.Preview = true
		v.Description = true
		v.PlotPanel = true
		v.SummaryText = fmt.Sprintf("%s - %d rows, %d columns.", s.Summary.Filename, s.Summary.Rows, s.Summary.Columns)
		v.HeadHTML = s.HeadHTML
		v.Columns = append([]session.Column(nil), s.Columns...)

		v.StatsOptions = s.NumericColumns()
		v.StatsPanel = len(v.StatsOptions) > 0
		v.StatsSelected = append([]string(nil), s.SelectedStatsColumns...)
		v.StatsLoading = s.StatsPending
		v.StatsHTML = s.StatsHTML
		v.StatsError = s.StatsErr

		v.PlotOptions = s.ColumnNames()
		v.PlotColumn = s.SelectedPlotColumn
		v.PlotType = s.SelectedPlotType

	case session.PhaseEmpty:
		// A file is selected but no analysis has started yet.
		v.Loading = true
	}

	return v
}

// applyAlert surfaces errors that do not belong to a panel: local
// validation failures and plot failures.
func (v *ViewState) applyAlert(last Outcome) {
	if last.Err == nil || last.Pending || IsSuperseded(last.Err) {
		return
	}
	kind := KindOf(last.Err)
	switch {
	case kind == KindValidation:
	case last.Op == OpPlot:
	default:
		return
	}
	v.Alert = last.Err.Error()
	v.AlertKind = kind.String()
}
