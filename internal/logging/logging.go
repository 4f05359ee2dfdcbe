package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the package-level structured logger. Configured by Setup.
var Logger *slog.Logger = slog.Default()

// Verbose reports whether debug-level logging is enabled.
var Verbose bool

// Setup configures the package logger. When verbose is true, debug
// records are emitted. When json is true, records are formatted as
// JSON instead of text. A nil writer defaults to stderr.
func Setup(verbose, json bool, w io.Writer) {
	Verbose = verbose

	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
}

// Debug logs a debug-level message. Suppressed unless verbose mode is on.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info-level message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning-level message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error-level message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// With returns a logger that includes the given attributes on every record.
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}
