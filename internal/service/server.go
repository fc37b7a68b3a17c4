// Package service is a reference implementation of the analysis service
// for local development and end-to-end tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/csvscope/internal/client"
)

// Defaults applied by NewServer.
const (
	DefaultAddr            = "localhost:5000"
	DefaultMaxUploadBytes  = 32 << 20
	DefaultShutdownTimeout = 5 * time.Second
	defaultPreviewRows     = 5
)

// Error messages returned to clients.
const (
	msgNoFilePart    = "No file part in the request"
	msgNoSelected    = "No selected file"
	msgInvalidType   = "Invalid file type. Please upload a CSV file."
	msgTooLarge      = "File too large."
	msgNoColumns     = "No columns selected for description."
	msgNotNumeric    = "Selected columns are not numeric or do not exist."
	msgBadRows       = "Row count must be an integer."
	msgBadPlotType   = "Invalid plot type. Choose one of bar, pie, line, doughnut, histogram."
	msgNoPlotColumn  = "No column selected for plotting."
	msgProcessingErr = "Error processing file: %v"
)

// Config holds configuration for the service.
type Config struct {
	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server serves /analyze, /describe and /plot.
type Server struct {
	addr            string
	maxUpload       int64
	shutdownTimeout time.Duration
	logger          *slog.Logger
	validate        *validator.Validate
	metrics         *metrics
	handler         http.Handler
}

// NewServer creates a new service instance.
func NewServer(cfg Config) *Server {
	s := &Server{
		addr:            cfg.Addr,
		maxUpload:       cfg.MaxUploadBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		metrics:         newMetrics(),
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
		s.metrics.instrument,
	)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	r.Post(client.AnalyzePath, s.handleAnalyze)
	r.Post(client.DescribePath, s.handleDescribe)
	r.Post(client.PlotPath, s.handlePlot)
	return r
}

// Serve listens on the configured address and blocks until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting analysis service", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down analysis service...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", msg)
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// upload is a parsed request file.
type upload struct {
	name  string
	frame *Frame
}

// readUpload parses the multipart form and the CSV file in it. On failure
// it writes the error response and returns nil.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) *upload {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
			return nil
		}
		s.fail(w, r, http.StatusBadRequest, msgNoFilePart)
		return nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, msgNoFilePart)
		return nil
	}
	defer func() { _ = file.Close() }()

	if header.Filename == "" {
		s.fail(w, r, http.StatusBadRequest, msgNoSelected)
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		s.fail(w, r, http.StatusBadRequest, msgInvalidType)
		return nil
	}

	frame, err := ReadFrame(file)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Sprintf(msgProcessingErr, err))
		return nil
	}
	s.metrics.uploads.Observe(float64(frame.Rows()))
	return &upload{name: header.Filename, frame: frame}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up := s.readUpload(w, r)
	if up == nil {
		return
	}

	rows := defaultPreviewRows
	if raw := r.FormValue("rows"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, msgBadRows)
			return
		}
		if n >= 1 {
			rows = n
		}
	}

	f := up.frame
	res := client.AnalyzeResult{
		Filename:    up.name,
		Rows:        f.Rows(),
		Columns:     len(f.Header),
		HeadHTML:    headHTML(f, rows),
		Description: make([]client.ColumnDescription, len(f.Header)),
	}
	for i, name := range f.Header {
		nonNull := f.NonNull(i)
		res.Description[i] = client.ColumnDescription{
			Column:       name,
			DType:        f.Types[i],
			NonNullCount: nonNull,
			NullCount:    f.Rows() - nonNull,
		}
	}

	s.logger.Debug("analyzed file", "file", up.name, "rows", res.Rows, "columns", res.Columns)
	render.JSON(w, r, res)
}

type describeParams struct {
	Columns []string `validate:"required,min=1,dive,required"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	up := s.readUpload(w, r)
	if up == nil {
		return
	}

	params := describeParams{Columns: r.MultipartForm.Value["columns"]}
	if err := s.validate.Struct(params); err != nil {
		s.fail(w, r, http.StatusBadRequest, msgNoColumns)
		return
	}

	summaries, err := describeColumns(up.frame, params.Columns)
	if errors.Is(err, errNoNumericColumns) {
		s.fail(w, r, http.StatusBadRequest, msgNotNumeric)
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Sprintf(msgProcessingErr, err))
		return
	}
	render.JSON(w, r, client.DescribeResult{StatsHTML: statsHTML(summaries)})
}

type plotParams struct {
	PlotType string `validate:"required,oneof=bar pie line doughnut histogram"`
	Column   string `validate:"required"`
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	up := s.readUpload(w, r)
	if up == nil {
		return
	}

	params := plotParams{
		PlotType: r.FormValue("plot_type"),
		Column:   r.FormValue("column"),
	}
	if err := s.validate.Struct(params); err != nil {
		msg := msgBadPlotType
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Column" {
			msg = msgNoPlotColumn
		}
		s.fail(w, r, http.StatusBadRequest, msg)
		return
	}

	res, err := plotData(up.frame, params.Column, params.PlotType)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	render.JSON(w, r, res)
}
