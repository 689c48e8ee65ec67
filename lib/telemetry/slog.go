package telemetry

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type SlogOptions struct {
	Verbose bool
	// Writer defaults to stderr.
	Writer io.Writer
	// NoColor disables ANSI colors, set when stderr is not a terminal.
	NoColor bool
}

// ConsoleHandler is the human readable handler used for terminal output.
func ConsoleHandler(opts SlogOptions) slog.Handler {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	})
}

// InitSlog installs the console handler as the process default logger.
func InitSlog(opts SlogOptions) *slog.Logger {
	logger := slog.New(ConsoleHandler(opts))
	slog.SetDefault(logger)
	return logger
}
