// Package client talks to the remote analysis service.
//
// Every endpoint takes a multipart form keyed "file" plus operation specific
// fields and answers with JSON. A non-success status is treated the same as
// an "error" field in the body.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Endpoint paths relative to the base URL.
const (
	AnalyzePath  = "/analyze"
	DescribePath = "/describe"
	PlotPath     = "/plot"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Client is an HTTP client for the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze requests the structural analysis of file with rows preview rows.
func (c *Client) Analyze(ctx context.Context, file Source, rows int) (*AnalyzeResult, error) {
	fields := []formField{{"rows", strconv.Itoa(rows)}}
	var out AnalyzeResult
	if err := c.post(ctx, "analyze", AnalyzePath, file, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Describe requests descriptive statistics for columns.
func (c *Client) Describe(ctx context.Context, file Source, columns []string) (*DescribeResult, error) {
	fields := make([]formField, 0, len(columns))
	for _, col := range columns {
		fields = append(fields, formField{"columns", col})
	}
	var out DescribeResult
	if err := c.post(ctx, "describe", DescribePath, file, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Plot requests the aggregated distribution of column for plotType.
func (c *Client) Plot(ctx context.Context, file Source, plotType, column string) (*PlotResult, error) {
	fields := []formField{{"plot_type", plotType}, {"column", column}}
	var out PlotResult
	if err := c.post(ctx, "plot", PlotPath, file, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type formField struct {
	key   string
	value string
}

func (c *Client) post(ctx context.Context, op, path string, file Source, fields []formField, out any) error {
	if file == nil {
		return errors.New("no file to upload")
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name(), err)
	}
	body, contentType, err := encodeForm(file.Name(), src, fields)
	_ = src.Close()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", file.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "error", err)
		return &TransportError{Op: op, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request completed",
		"op", op,
		"file", file.Name(),
		"status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Op: op, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	return decodeResponse(op, resp, data, out)
}

func decodeResponse(op string, resp *http.Response, data []byte, out any) error {
	var eb errorBody
	jsonErr := json.Unmarshal(data, &eb)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if jsonErr != nil {
			return &TransportError{Op: op, Cause: fmt.Errorf("unexpected status %d with malformed body", resp.StatusCode)}
		}
		msg := eb.Error
		if msg == "" {
			msg = fmt.Sprintf("Server error (%s)", resp.Status)
		}
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if jsonErr != nil {
		return &TransportError{Op: op, Cause: fmt.Errorf("malformed response: %w", jsonErr)}
	}
	if eb.Error != "" {
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: eb.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Cause: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

func encodeForm(name string, src io.Reader, fields []formField) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", err
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
