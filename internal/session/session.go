// Package session holds the state of the single file currently under analysis.
//
// A Session is a plain data holder. Begin and Reset are the only lifecycle
// operations; every other field is written by the analysis orchestrator.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultRowPreviewCount is used when no positive preview size is configured.
const DefaultRowPreviewCount = 5

// AcceptedExtension is the only file extension the analysis service accepts.
const AcceptedExtension = ".csv"

// ErrUnsupportedFile is returned by Begin for files that fail Accepts.
var ErrUnsupportedFile = errors.New("invalid file type, please choose a CSV file")

// ErrNoFile is returned by Begin when called without a file.
var ErrNoFile = errors.New("no file selected")

// Phase is the coarse state of a session.
type Phase int

const (
	// PhaseEmpty means no file is selected.
	PhaseEmpty Phase = iota
	// PhaseAnalyzing means a structural analysis is in flight.
	PhaseAnalyzing
	// PhaseReady means the last structural analysis succeeded.
	PhaseReady
	// PhaseError means the last structural analysis failed. The file is kept.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Summary is the row/column count line of a structural analysis.
type Summary struct {
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
}

// Session describes exactly one selected file and everything derived from it.
type Session struct {
	ID              string
	File            File
	RowPreviewCount int

	Phase       Phase
	AnalysisErr string

	Summary  Summary
	HeadHTML string
	Columns  []Column

	SelectedStatsColumns []string
	SelectedPlotColumn   string
	SelectedPlotType     string

	StatsHTML    string
	StatsErr     string
	StatsPending bool

	defaultPlotType string
}

// New returns an empty session. Non-positive rows fall back to
// DefaultRowPreviewCount.
func New(rows int, defaultPlotType string) *Session {
	if rows < 1 {
		rows = DefaultRowPreviewCount
	}
	return &Session{
		RowPreviewCount: rows,
		defaultPlotType: defaultPlotType,
	}
}

// Accepts reports whether name has the accepted extension, ignoring case.
func Accepts(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), AcceptedExtension)
}

// Begin replaces the session wholesale with one for file. The row preview
// count survives; everything derived from the previous file is dropped.
func (s *Session) Begin(file File) error {
	if file == nil {
		return ErrNoFile
	}
	if !Accepts(file.Name()) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, file.Name())
	}
	s.clear()
	s.ID = uuid.NewString()
	s.File = file
	return nil
}

// Reset clears the session to its initial empty form. It is idempotent.
func (s *Session) Reset() {
	s.clear()
}

func (s *Session) clear() {
	rows := s.RowPreviewCount
	plotType := s.defaultPlotType
	*s = Session{
		RowPreviewCount: rows,
		defaultPlotType: plotType,
	}
}

// Active reports whether a file is selected.
func (s *Session) Active() bool {
	return s.File != nil
}

// DefaultPlotType returns the plot type applied when columns are repopulated.
func (s *Session) DefaultPlotType() string {
	return s.defaultPlotType
}

// SetColumns atomically replaces the column description and resets the
// selections that depend on it.
func (s *Session) SetColumns(cols []Column) {
	s.Columns = cols
	s.SelectedStatsColumns = nil
	s.SelectedPlotColumn = ""
	if len(cols) > 0 {
		s.SelectedPlotColumn = cols[0].Name
	}
	s.SelectedPlotType = s.defaultPlotType
}

// ClearResults drops everything produced by previous remote calls while
// keeping the file and its preview count. Used when a new structural
// analysis starts.
func (s *Session) ClearResults() {
	s.AnalysisErr = ""
	s.Summary = Summary{}
	s.HeadHTML = ""
	s.Columns = nil
	s.SelectedStatsColumns = nil
	s.SelectedPlotColumn = ""
	s.SelectedPlotType = ""
	s.StatsHTML = ""
	s.StatsErr = ""
	s.StatsPending = false
}

// Column looks up a column by name.
func (s *Session) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns all column names in order.
func (s *Session) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// NumericColumns returns the names of int and float columns in order.
func (s *Session) NumericColumns() []string {
	var names []string
	for _, c := range s.Columns {
		if c.DType.Numeric() {
			names = append(names, c.Name)
		}
	}
	return names
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Columns = append([]Column(nil), s.Columns...)
	c.SelectedStatsColumns = append([]string(nil), s.SelectedStatsColumns...)
	return &c
}
