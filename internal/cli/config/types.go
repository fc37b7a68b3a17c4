// Package config provides configuration management for the csvscope CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	ServiceURL   string        `koanf:"service_url" validate:"required,url"`
	Rows         int           `koanf:"rows" validate:"min=1"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output" validate:"oneof=auto text markdown json"`
	Plot         PlotConfig    `koanf:"plot"`
	Shell        ShellConfig   `koanf:"shell"`
	Serve        ServeConfig   `koanf:"serve"`
}

// PlotConfig holds chart settings.
type PlotConfig struct {
	DefaultType string `koanf:"default_type" validate:"required,oneof=bar pie line doughnut histogram"`
	// PNGDir, when set, receives a PNG export of every chart.
	PNGDir string `koanf:"png_dir"`
}

// ShellConfig holds settings for the interactive shell.
type ShellConfig struct {
	HistoryFile   string        `koanf:"history_file"`
	WatchDebounce time.Duration `koanf:"watch_debounce" validate:"gte=0"`
}

// ServeConfig holds settings for the reference analysis service.
type ServeConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	MaxUploadMB     int64         `koanf:"max_upload_mb" validate:"min=1"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Default configuration values.
const (
	DefaultServiceURL      = "http://localhost:5000"
	DefaultRows            = 5
	DefaultTimeout         = 60 * time.Second
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultPlotType        = "bar"
	DefaultHistoryFile     = ".csvscope_history"
	DefaultWatchDebounce   = 200 * time.Millisecond
	DefaultServeAddr       = "localhost:5000"
	DefaultMaxUploadMB     = 32
	DefaultShutdownTimeout = 5 * time.Second
)

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		ServiceURL:   DefaultServiceURL,
		Rows:         DefaultRows,
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutput,
		Plot:         PlotConfig{DefaultType: DefaultPlotType},
		Shell: ShellConfig{
			HistoryFile:   DefaultHistoryFile,
			WatchDebounce: DefaultWatchDebounce,
		},
		Serve: ServeConfig{
			Addr:            DefaultServeAddr,
			MaxUploadMB:     DefaultMaxUploadMB,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
	}
}
