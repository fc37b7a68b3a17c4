package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/csvscope/internal/service"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr        string
	MaxUploadMB int64
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local analysis service",
		Long: `Start a local implementation of the analysis service.

Endpoints:
- POST /analyze   structure, preview and column description
- POST /describe  descriptive statistics of numeric columns
- POST /plot      value counts or histogram of a column
- GET  /healthz   liveness
- GET  /metrics   Prometheus metrics`,
		Example: `  # Serve on the default address
  csvscope serve

  # Serve on all interfaces with a larger upload limit
  csvscope serve --addr :8080 --max-upload-mb 128`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Address to listen on (default: localhost:5000)")
	cmd.Flags().Int64Var(&opts.MaxUploadMB, "max-upload-mb", 0, "Largest accepted upload in MiB (default: 32)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc := NewCommandContext(cmd)
	serveCfg := cc.Cfg.Serve

	// CLI flags override config file
	if opts.Addr != "" {
		serveCfg.Addr = opts.Addr
	}
	if opts.MaxUploadMB > 0 {
		serveCfg.MaxUploadMB = opts.MaxUploadMB
	}

	server := service.NewServer(service.Config{
		Addr:            serveCfg.Addr,
		MaxUploadBytes:  serveCfg.MaxUploadMB << 20,
		ShutdownTimeout: serveCfg.ShutdownTimeout,
		Logger:          cc.Logger,
	})

	cc.Renderer.Success("Analysis service listening on http://" + serveCfg.Addr)
	cc.Renderer.Muted("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}

