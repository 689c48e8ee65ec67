package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled on Ctrl+C or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits with status 1.
func Fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}
