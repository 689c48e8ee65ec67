// Package runlog opens the append-only log file of a brand run.
package runlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Brand string
	// Dirs are tried in order, the first that can be opened for appending
	// wins.
	Dirs    []string
	Console slog.Handler
	Level   slog.Leveler
	// MaxSizeMB rotates the file once it grows past this size, 0 means 50.
	MaxSizeMB int
}

type RunLog struct {
	Logger *slog.Logger
	// Path is empty when no file could be opened.
	Path string
	file io.Closer
}

func FileName(brand string) string {
	return brand + "_run.log"
}

func checkWritable(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Open never fails: when no directory can be used the run logs to the
// console only and a warning says so.
func Open(opts Options) *RunLog {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	maxSize := opts.MaxSizeMB
	if maxSize == 0 {
		maxSize = 50
	}
	console := opts.Console
	if console == nil {
		console = slog.Default().Handler()
	}

	var errs []error
	for _, dir := range opts.Dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, FileName(opts.Brand))
		err := checkWritable(path)
		if err != nil {
			errs = append(errs, err)
			slog.New(console).Warn("run log unavailable", "path", path, "err", err)
			continue
		}

		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: 5,
		}
		handler := slogmulti.Fanout(
			console,
			slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}),
		)
		return &RunLog{
			Logger: slog.New(handler).With("brand", opts.Brand),
			Path:   path,
			file:   file,
		}
	}

	logger := slog.New(console).With("brand", opts.Brand)
	logger.Warn(
		"no run log file could be opened, logging to console only",
		"err", errors.Join(errs...),
	)
	return &RunLog{Logger: logger}
}

func (l *RunLog) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	if err != nil {
		return fmt.Errorf("close run log %s: %w", l.Path, err)
	}
	return nil
}
