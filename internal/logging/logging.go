// Package logging builds the slog loggers the CLI hands to the engine.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config selects the level and handler of a logger.
type Config struct {
	Level     slog.Level
	Format    string // "text" | "json"
	Output    io.Writer
	AddSource bool
}

// DefaultConfig logs warnings and errors as text on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelWarn,
		Format: "text",
		Output: os.Stderr,
	}
}

// FromFlags maps the global CLI flags onto a Config. Verbose output logs
// at debug level.
func FromFlags(verbose bool, format string, out io.Writer) Config {
	cfg := DefaultConfig()
	if verbose {
		cfg.Level = slog.LevelDebug
	}
	if format == "json" {
		cfg.Format = "json"
	}
	if out != nil {
		cfg.Output = out
	}
	return cfg
}

// New returns a logger for cfg.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// ForComponent tags every record of l with the component name.
func ForComponent(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
