package client

import "io"

// Source is the file uploaded with every request.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// ColumnDescription is one entry of an analysis description.
type ColumnDescription struct {
	Column       string `json:"column"`
	DType        string `json:"dtype"`
	NonNullCount int    `json:"non_null_count"`
	NullCount    int    `json:"null_count"`
}

// AnalyzeResult is the structural analysis of a file.
type AnalyzeResult struct {
	Filename    string              `json:"filename"`
	Rows        int                 `json:"rows"`
	Columns     int                 `json:"columns"`
	HeadHTML    string              `json:"head_html"`
	Description []ColumnDescription `json:"description"`
}

// DescribeResult holds rendered descriptive statistics.
type DescribeResult struct {
	StatsHTML string `json:"stats_html"`
}

// PlotResult is the aggregated distribution of one column.
type PlotResult struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// errorBody is the error payload shared by all endpoints.
type errorBody struct {
	Error string `json:"error"`
}
