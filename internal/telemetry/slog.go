package telemetry

import (
	"context"
	"log/slog"
)

// SlogAPI implements API on top of a slog logger, a nil logger means
// slog.Default().
type SlogAPI struct {
	Logger *slog.Logger
}

func (s SlogAPI) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s SlogAPI) report(level slog.Level, msg, id string, params []any) {
	args := append([]any{"id", id}, params...)
	s.logger().Log(context.Background(), level, msg, args...)
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.report(slog.LevelError, "broken component", id, params)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.report(slog.LevelWarn, "warning", id, params)
}

func (s SlogAPI) ReportDebug(id string, params ...any) {
	s.report(slog.LevelInfo, "progress", id, params)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger().Info("count", "id", id, "n", count)
}
