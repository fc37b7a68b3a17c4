package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/csvscope/internal/client"
	"github.com/leapstack-labs/csvscope/internal/session"
)

func readySession(t *testing.T, cols ...session.Column) *session.Session {
	t.Helper()
	s := session.New(5, "bar")
	require.NoError(t, s.Begin(session.NewMemoryFile("data.csv", nil)))
	s.Summary = session.Summary{Filename: "data.csv", Rows: 10, Columns: len(cols)}
	s.SetColumns(cols)
	s.Phase = session.PhaseReady
	return s
}

func TestDeriveView_Phases(t *testing.T) {
	tests := []struct {
		name  string
		phase session.Phase
		check func(t *testing.T, v ViewState)
	}{
		{"analyzing", session.PhaseAnalyzing, func(t *testing.T, v ViewState) {
			assert.True(t, v.Results)
			assert.True(t, v.Loading)
			assert.False(t, v.Summary)
			assert.False(t, v.ErrorBanner)
		}},
		{"error", session.PhaseError, func(t *testing.T, v ViewState) {
			assert.True(t, v.ErrorBanner)
			assert.Equal(t, "boom", v.ErrorText)
			assert.Equal(t, LabelTryAgain, v.ResetLabel)
			assert.False(t, v.Loading)
			assert.False(t, v.PlotPanel)
		}},
		{"ready", session.PhaseReady, func(t *testing.T, v ViewState) {
			assert.True(t, v.Summary)
			assert.True(t, v.Preview)
			assert.True(t, v.Description)
			assert.True(t, v.PlotPanel)
			assert.Equal(t, LabelAnalyzeAnother, v.ResetLabel)
			assert.False(t, v.Loading)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := readySession(t, session.Column{Name: "a", DType: session.DTypeInt, NonNullCount: 10})
			s.Phase = tt.phase
			s.AnalysisErr = "boom"

			v := DeriveView(s, Outcome{Op: OpAnalyze})

			assert.Equal(t, tt.phase.String(), v.Phase)
			assert.False(t, v.UploadPrompt)
			assert.Equal(t, "data.csv", v.FileLabel)
			tt.check(t, v)
		})
	}
}

func TestDeriveView_NoSession(t *testing.T) {
	assert.Equal(t, InitialView(), DeriveView(nil, Outcome{}))
	assert.Equal(t, InitialView(), DeriveView(session.New(5, "bar"), Outcome{Op: OpReset}))
}

func TestDeriveView_StatsPanelNeedsNumericColumn(t *testing.T) {
	s := readySession(t, session.Column{Name: "name", DType: session.DTypeOther, NonNullCount: 10})
	v := DeriveView(s, Outcome{Op: OpAnalyze})

	assert.False(t, v.StatsPanel)
	assert.Empty(t, v.StatsOptions)
	assert.True(t, v.PlotPanel)
	assert.Equal(t, []string{"name"}, v.PlotOptions)
}

func TestDeriveView_Alerts(t *testing.T) {
	s := readySession(t, session.Column{Name: "a", DType: session.DTypeFloat, NonNullCount: 10})

	tests := []struct {
		name      string
		out       Outcome
		wantAlert string
		wantKind  string
	}{
		{"validation", Outcome{Op: OpDescribe, Err: validationError("pick one")}, "pick one", "validation"},
		{"plot service error", Outcome{Op: OpPlot, Err: client.NewServiceError("plot", "nope")}, "nope", "service"},
		{"plot transport error", Outcome{Op: OpPlot, Err: &client.TransportError{Op: "plot", Cause: errors.New("x")}},
			client.UnexpectedErrorMessage, "transport"},
		{"describe service error stays inline", Outcome{Op: OpDescribe, Err: client.NewServiceError("describe", "bad")}, "", ""},
		{"pending", Outcome{Op: OpPlot, Pending: true, Err: validationError("x")}, "", ""},
		{"superseded", Outcome{Op: OpPlot, Err: ErrSuperseded}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DeriveView(s, tt.out)
			assert.Equal(t, tt.wantAlert, v.Alert)
			assert.Equal(t, tt.wantKind, v.AlertKind)
		})
	}
}

func TestDeriveView_DoesNotAliasSession(t *testing.T) {
	s := readySession(t, session.Column{Name: "a", DType: session.DTypeInt, NonNullCount: 10})
	s.SelectedStatsColumns = []string{"a"}

	v := DeriveView(s, Outcome{})
	v.Columns[0].Name = "changed"
	v.StatsSelected[0] = "changed"

	assert.Equal(t, "a", s.Columns[0].Name)
	assert.Equal(t, "a", s.SelectedStatsColumns[0])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(validationError("x")))
	assert.Equal(t, KindService, KindOf(contractError("analyze", "x")))
	assert.Equal(t, KindTransport, KindOf(errors.New("x")))
	assert.True(t, IsSuperseded(ErrSuperseded))
}
