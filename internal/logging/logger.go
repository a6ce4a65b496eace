// Package logging builds the service's zap logger.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
}

// New constructs a zap logger using the provided options. Format is "json"
// (default), "console", or "auto", which picks console when stdout is a
// terminal.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil && opts.Level != "" {
		return nil, fmt.Errorf("log level: %w", err)
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "":
		format = "json"
	case "auto":
		format = "json"
		if isTerminal(os.Stdout) {
			format = "console"
		}
	case "json", "console":
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "ts"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       opts.Development,
		DisableStacktrace: !opts.Development,
		Encoding:          format,
		EncoderConfig:     encoder,
		OutputPaths:       defaultSlice(opts.OutputPaths, []string{"stdout"}),
		ErrorOutputPaths:  defaultSlice(opts.ErrorOutputPaths, []string{"stderr"}),
	}
	return cfg.Build()
}

func defaultSlice(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
