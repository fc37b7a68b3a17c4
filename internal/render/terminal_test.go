package render

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/csvscope/internal/analysis"
	"github.com/leapstack-labs/csvscope/internal/cli/output"
	"github.com/leapstack-labs/csvscope/internal/session"
	"github.com/leapstack-labs/csvscope/internal/testutil"
)

const headHTML = `<table border="1" class="dataframe">
  <thead>
    <tr style="text-align: right;"><th></th><th>city</th><th>price</th></tr>
  </thead>
  <tbody>
    <tr><th>0</th><td>Oslo</td><td>1.5</td></tr>
    <tr><th>1</th><td>Rome</td><td>NaN</td></tr>
  </tbody>
</table>`

func newTerminal(mode output.OutputMode, opts ...Option) (*Terminal, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := output.NewRendererWithTTY(&out, &errOut, false, mode)
	return NewTerminal(r, opts...), &out, &errOut
}

func readyView() analysis.ViewState {
	v := analysis.InitialView()
	v.Phase = "ready"
	v.UploadPrompt = false
	v.Results, v.Summary, v.Preview, v.Description, v.StatsPanel, v.PlotPanel = true, true, true, true, true, true
	v.FileLabel = "data.csv"
	v.SummaryText = "data.csv - 2 rows, 2 columns."
	v.HeadHTML = headHTML
	v.Columns = []session.Column{
		{Name: "city", RawType: "object", NonNullCount: 2},
		{Name: "price", RawType: "float64", NonNullCount: 1, NullCount: 1},
	}
	v.StatsOptions = []string{"price"}
	v.StatsSelected = []string{"price"}
	v.PlotOptions = []string{"city", "price"}
	v.PlotColumn = "city"
	v.PlotType = "bar"
	return v
}

func TestParseHTMLTable(t *testing.T) {
	tbl, err := parseHTMLTable(headHTML)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "city", "price"}, tbl.Header)
	assert.Equal(t, [][]string{{"0", "Oslo", "1.5"}, {"1", "Rome", "NaN"}}, tbl.Rows)
}

func TestParseHTMLTable_NoThead(t *testing.T) {
	tbl, err := parseHTMLTable(`<table><tr><th>a</th></tr><tr><td>1</td></tr></table>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tbl.Header)
	assert.Equal(t, [][]string{{"1"}}, tbl.Rows)
}

func TestParseHTMLTable_NoTable(t *testing.T) {
	_, err := parseHTMLTable(`<p>nothing</p>`)
	assert.Error(t, err)
	assert.Equal(t, "nothing", prettyTable(`<p>nothing</p>`))
}

func TestRender_Text(t *testing.T) {
	term, out, _ := newTerminal(output.ModeText)

	term.Render(readyView())

	got := out.String()
	for _, want := range []string{"Summary", "data.csv - 2 rows, 2 columns.", "Oslo", "float64", "Descriptive Statistics", "*price", "[Analyze Another]"} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "<td>")
}

func TestRender_TextStates(t *testing.T) {
	tests := []struct {
		name    string
		view    func() analysis.ViewState
		want    string
		wantErr string
	}{
		{"initial", analysis.InitialView, "No file selected (CSV files only).", ""},
		{"loading", func() analysis.ViewState {
			v := analysis.InitialView()
			v.UploadPrompt, v.Loading, v.FileLabel = false, true, "data.csv"
			return v
		}, "Analyzing data.csv...", ""},
		{"error", func() analysis.ViewState {
			v := analysis.InitialView()
			v.UploadPrompt, v.ErrorBanner = false, true
			v.ErrorText, v.ResetLabel = "Invalid file type. Please upload a CSV file.", analysis.LabelTryAgain
			return v
		}, "[Try Again]", ""},
		{"alert", func() analysis.ViewState {
			v := analysis.InitialView()
			v.Alert, v.AlertKind = "pick one", "validation"
			return v
		}, "No file selected", "Error: pick one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, out, errOut := newTerminal(output.ModeText)
			term.Render(tt.view())
			assert.Contains(t, out.String(), tt.want)
			if tt.wantErr != "" {
				assert.Contains(t, errOut.String(), tt.wantErr)
			}
		})
	}
}

func TestRender_Markdown(t *testing.T) {
	term, out, _ := newTerminal(output.ModeMarkdown)

	term.Render(readyView())

	got := out.String()
	assert.Contains(t, got, "# Summary")
	assert.Contains(t, got, "## Preview")
	assert.Contains(t, got, "| city")
	assert.Contains(t, got, "Oslo")
	assert.NotContains(t, got, "<table")
	assert.NotContains(t, got, "\x1b[")
}

func TestRender_JSON(t *testing.T) {
	term, out, _ := newTerminal(output.ModeJSON)

	term.Render(readyView())

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "ready", got["phase"])
	assert.Equal(t, true, got["stats_panel"])
}

func TestDeferred_FlushWritesLatestOnly(t *testing.T) {
	term, out, _ := newTerminal(output.ModeJSON, Deferred())

	loading := analysis.InitialView()
	loading.Loading = true
	term.Render(loading)
	term.Render(readyView())
	_, err := term.DrawChart(analysis.ChartData{Column: "city", PlotType: "bar", Labels: []string{"Oslo"}, Data: []float64{1}})
	require.NoError(t, err)
	assert.Empty(t, out.String())

	term.Flush()

	dec := json.NewDecoder(out)
	var view analysis.ViewState
	require.NoError(t, dec.Decode(&view))
	assert.Equal(t, "ready", view.Phase)
	var chart analysis.ChartData
	require.NoError(t, dec.Decode(&chart))
	assert.Equal(t, "city", chart.Column)
	assert.False(t, dec.More())
}

func TestDrawChart_LiveInstances(t *testing.T) {
	term, out, _ := newTerminal(output.ModeText)
	data := analysis.ChartData{Column: "city", PlotType: "pie", Labels: []string{"Oslo", "Rome"}, Data: []float64{3, 1}}

	first, err := term.DrawChart(data)
	require.NoError(t, err)
	assert.Equal(t, 1, term.Live())

	require.NoError(t, first.Destroy())
	require.NoError(t, first.Destroy())
	assert.Equal(t, 0, term.Live())

	_, err = term.DrawChart(data)
	require.NoError(t, err)
	assert.Equal(t, 1, term.Live())

	got := out.String()
	assert.Contains(t, got, "Pie of city")
	assert.Contains(t, got, "(75.0%)")
}

func TestDrawChart_RejectsMismatch(t *testing.T) {
	term, _, _ := newTerminal(output.ModeText)
	_, err := term.DrawChart(analysis.ChartData{Labels: []string{"a"}})
	assert.Error(t, err)
	assert.Equal(t, 0, term.Live())
}

func TestDrawChart_PNGExport(t *testing.T) {
	dir := t.TempDir()
	term, _, _ := newTerminal(output.ModeText, WithPNGDir(dir))

	for _, typ := range []string{"bar", "pie", "line", "doughnut", "histogram"} {
		t.Run(typ, func(t *testing.T) {
			c, err := term.DrawChart(analysis.ChartData{
				Column:   "unit price",
				PlotType: typ,
				Labels:   []string{"a", "b", "c"},
				Data:     []float64{3, 1, 2},
			})
			require.NoError(t, err)

			inst := c.(*Instance)
			require.NotEmpty(t, inst.PNGPath)
			assert.Equal(t, dir, filepath.Dir(inst.PNGPath))
			assert.True(t, strings.HasPrefix(filepath.Base(inst.PNGPath), "unit_price-"+typ))

			data, err := os.ReadFile(inst.PNGPath)
			require.NoError(t, err)
			assert.Equal(t, "\x89PNG", string(data[:4]))
		})
	}
}

func TestDrawChart_PNGFailureIsLogged(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	logger, rec := testutil.NewLogRecorder()
	term, out, _ := newTerminal(output.ModeText, WithPNGDir(filepath.Join(blocker, "charts")), WithLogger(logger))

	c, err := term.DrawChart(analysis.ChartData{Column: "qty", PlotType: "bar", Labels: []string{"a"}, Data: []float64{1}})
	require.NoError(t, err)
	assert.Empty(t, c.(*Instance).PNGPath)
	assert.Equal(t, 1, term.Live())
	assert.Contains(t, out.String(), "qty")

	entry, ok := rec.Find("failed to export chart")
	require.True(t, ok)
	assert.Equal(t, slog.LevelWarn, entry.Level)
	assert.Equal(t, "qty", entry.Attrs["column"])
}

func TestBarLines(t *testing.T) {
	lines := barLines(analysis.ChartData{
		PlotType: "bar",
		Labels:   []string{"a", "long"},
		Data:     []float64{10, 5},
	}, func(s string) string { return s })

	require.Len(t, lines, 2)
	assert.Equal(t, "a    "+strings.Repeat("█", barWidth)+" 10", lines[0])
	assert.Equal(t, "long "+strings.Repeat("█", barWidth/2)+" 5", lines[1])
}
