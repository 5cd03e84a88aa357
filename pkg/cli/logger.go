package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

// NewLogger builds the diagnostic logger. Text output is used on a terminal,
// JSON otherwise. Unknown levels fall back to warn.
func NewLogger(logLevel string, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if ui.IsTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
