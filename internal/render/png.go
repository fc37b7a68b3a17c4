package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/leapstack-labs/csvscope/internal/analysis"
)

const (
	pngWidth  = 1024
	pngHeight = 512
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// pngFileName builds a file name that is safe on every platform.
func pngFileName(data analysis.ChartData, id int) string {
	col := strings.Trim(unsafeFileChars.ReplaceAllString(data.Column, "_"), "_")
	if col == "" {
		col = "column"
	}
	return fmt.Sprintf("%s-%s-%d.png", col, unsafeFileChars.ReplaceAllString(data.PlotType, "_"), id)
}

// writePNG renders data with go-chart into dir and returns the file path.
func writePNG(dir string, data analysis.ChartData, id int) (string, error) {
	if len(data.Data) == 0 {
		return "", fmt.Errorf("no data to plot for column %q", data.Column)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, pngFileName(data, id))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	title := fmt.Sprintf("%s of %s", titleCase(data.PlotType), data.Column)
	if err := renderChart(f, title, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func renderChart(f *os.File, title string, data analysis.ChartData) error {
	values := make([]chart.Value, len(data.Data))
	for i, v := range data.Data {
		values[i] = chart.Value{Label: data.Labels[i], Value: v}
	}

	var err error
	switch data.PlotType {
	case "pie":
		pie := chart.PieChart{Title: title, Width: pngHeight, Height: pngHeight, Values: values}
		err = pie.Render(chart.PNG, f)
	case "doughnut":
		donut := chart.DonutChart{Title: title, Width: pngHeight, Height: pngHeight, Values: values}
		err = donut.Render(chart.PNG, f)
	case "line":
		xs := make([]float64, len(data.Data))
		ticks := make([]chart.Tick, len(data.Data))
		for i := range data.Data {
			xs[i] = float64(i)
			ticks[i] = chart.Tick{Value: float64(i), Label: data.Labels[i]}
		}
		line := chart.Chart{
			Title:  title,
			Width:  pngWidth,
			Height: pngHeight,
			XAxis:  chart.XAxis{Ticks: ticks},
			Series: []chart.Series{chart.ContinuousSeries{
				Name:    data.Column,
				XValues: xs,
				YValues: data.Data,
				Style:   chart.Style{StrokeColor: drawing.ColorBlue, StrokeWidth: 2},
			}},
		}
		err = line.Render(chart.PNG, f)
	default:
		peak := 0.0
		for _, v := range data.Data {
			peak = max(peak, v)
		}
		bar := chart.BarChart{
			Title:    title,
			Width:    pngWidth,
			Height:   pngHeight,
			BarWidth: max(8, pngWidth/(2*len(values)+1)),
			YAxis:    chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: peak}},
			Bars:     values,
		}
		err = bar.Render(chart.PNG, f)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s chart: %w", data.PlotType, err)
	}
	return nil
}
