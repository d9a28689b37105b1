package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the global slog logger with JSON output to stdout.
func Setup(env string) *slog.Logger {
	logger := slog.New(NewJSONHandler(os.Stdout, env))
	slog.SetDefault(logger)
	return logger
}

// NewJSONHandler logs at debug level outside production.
func NewJSONHandler(w io.Writer, env string) slog.Handler {
	level := slog.LevelInfo
	if !strings.EqualFold(env, "production") {
		level = slog.LevelDebug
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
