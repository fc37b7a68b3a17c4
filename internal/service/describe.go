package service

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
)

// tableClass is the CSS class of every rendered table.
const tableClass = "dataframe"

var describeQuantiles = []float64{25, 50, 75}

func newHTMLTable() table.Writer {
	tw := table.NewWriter()
	tw.Style().HTML = table.HTMLOptions{
		CSSClass:   tableClass,
		EscapeText: true,
		Newline:    "<br/>",
	}
	return tw
}

// headHTML renders the first n records.
func headHTML(f *Frame, n int) string {
	tw := newHTMLTable()
	header := make(table.Row, len(f.Header))
	for i, h := range f.Header {
		header[i] = h
	}
	tw.AppendHeader(header)

	for row := 0; row < min(n, f.Rows()); row++ {
		r := make(table.Row, len(f.Header))
		for col := range f.Header {
			r[col] = f.Cell(row, col)
		}
		tw.AppendRow(r)
	}
	return tw.RenderHTML()
}

type columnSummary struct {
	name string
	desc *stats.Description
}

// errNoNumericColumns is returned by describeColumns when no requested name
// is a numeric column.
var errNoNumericColumns = errors.New("no numeric columns selected")

// describeColumns summarizes the numeric columns among names. Unknown and
// non-numeric names are skipped.
func describeColumns(f *Frame, names []string) ([]columnSummary, error) {
	var summaries []columnSummary
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		col := f.ColumnIndex(name)
		if col < 0 || seen[name] || !f.Numeric(col) {
			continue
		}
		seen[name] = true

		data := stats.Float64Data(f.Floats(col))
		desc, err := stats.DescribePercentileFunc(data, true, &describeQuantiles, linearPercentile)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", name, err)
		}
		desc.Std = sampleStd(data)
		if data.Len() == 0 {
			desc.Mean, desc.Min, desc.Max = math.NaN(), math.NaN(), math.NaN()
		}
		summaries = append(summaries, columnSummary{name: name, desc: desc})
	}
	if len(summaries) == 0 {
		return nil, errNoNumericColumns
	}
	return summaries, nil
}

// statsHTML renders one column per summary and one row per statistic.
func statsHTML(summaries []columnSummary) string {
	tw := newHTMLTable()
	header := table.Row{""}
	for _, s := range summaries {
		header = append(header, s.name)
	}
	tw.AppendHeader(header)

	row := func(label string, value func(*stats.Description) float64) {
		r := table.Row{label}
		for _, s := range summaries {
			r = append(r, formatStat(value(s.desc)))
		}
		tw.AppendRow(r)
	}
	row("count", func(d *stats.Description) float64 { return float64(d.Count) })
	row("mean", func(d *stats.Description) float64 { return d.Mean })
	row("std", func(d *stats.Description) float64 { return d.Std })
	row("min", func(d *stats.Description) float64 { return d.Min })
	for i, q := range describeQuantiles {
		row(fmt.Sprintf("%g%%", q), func(d *stats.Description) float64 {
			if i < len(d.DescriptionPercentiles) {
				return d.DescriptionPercentiles[i].Value
			}
			return math.NaN()
		})
	}
	row("max", func(d *stats.Description) float64 { return d.Max })

	return tw.RenderHTML()
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6f", v)
}

// linearPercentile interpolates between the two closest ranks.
func linearPercentile(input stats.Float64Data, percent float64) (float64, error) {
	if input.Len() == 0 {
		return math.NaN(), stats.ErrEmptyInput
	}
	if percent < 0 || percent > 100 {
		return math.NaN(), stats.ErrBounds
	}
	sorted := slices.Clone([]float64(input))
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * percent / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo]), nil
}

// sampleStd is the standard deviation with one degree of freedom removed.
func sampleStd(data stats.Float64Data) float64 {
	if data.Len() < 2 {
		return math.NaN()
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return math.NaN()
	}
	return sd
}
