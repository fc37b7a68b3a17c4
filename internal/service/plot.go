package service

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/leapstack-labs/csvscope/internal/client"
)

// Plot types accepted by /plot.
const (
	PlotBar       = "bar"
	PlotPie       = "pie"
	PlotLine      = "line"
	PlotDoughnut  = "doughnut"
	PlotHistogram = "histogram"
)

const (
	histogramBins = 10
	// maxCategories caps value-count charts; the rest is folded into "Other".
	maxCategories = 20
	otherLabel    = "Other"
)

// plotError is a request the data cannot satisfy.
type plotError string

func (e plotError) Error() string { return string(e) }

func plotData(f *Frame, column, plotType string) (*client.PlotResult, error) {
	col := f.ColumnIndex(column)
	if col < 0 {
		return nil, plotError(fmt.Sprintf("Column '%s' does not exist.", column))
	}
	if plotType == PlotHistogram {
		if !f.Numeric(col) {
			return nil, plotError("Histogram requires a numeric column.")
		}
		return histogram(f.Floats(col))
	}
	values := f.Values(col)
	if len(values) == 0 {
		return nil, plotError(fmt.Sprintf("Column '%s' has no values to plot.", column))
	}
	return valueCounts(values), nil
}

// valueCounts counts each distinct value, most frequent first. Ties keep
// the order of first appearance.
func valueCounts(values []string) *client.PlotResult {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})

	res := &client.PlotResult{}
	other := 0
	for i, v := range order {
		if i >= maxCategories {
			other += counts[v]
			continue
		}
		res.Labels = append(res.Labels, v)
		res.Data = append(res.Data, float64(counts[v]))
	}
	if other > 0 {
		res.Labels = append(res.Labels, otherLabel)
		res.Data = append(res.Data, float64(other))
	}
	return res
}

// histogram splits the value range into equal bins. The last bin is
// closed on both ends. A constant column is widened by 0.5 on each side.
func histogram(values []float64) (*client.PlotResult, error) {
	values = slices.DeleteFunc(slices.Clone(values), math.IsNaN)
	if len(values) == 0 {
		return nil, plotError("Column has no values to plot.")
	}
	lo, _ := stats.Min(values)
	hi, _ := stats.Max(values)
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, plotError("Histogram requires finite values.")
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / histogramBins

	res := &client.PlotResult{
		Labels: make([]string, histogramBins),
		Data:   make([]float64, histogramBins),
	}
	for i := range histogramBins {
		from := lo + float64(i)*width
		res.Labels[i] = formatEdge(from) + "-" + formatEdge(from+width)
	}
	for _, v := range values {
		bin := min(int((v-lo)/width), histogramBins-1)
		res.Data[bin]++
	}
	return res, nil
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
