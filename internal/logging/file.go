package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating log file used by the CLI, which keeps
// log lines out of the interactive prompt.
type FileOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewFileLogger returns a JSON slog logger writing to a size-rotated file.
// The returned closer flushes and closes the current file.
func NewFileLogger(o FileOptions) (*SlogLogger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   true,
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(o.Level)})
	return NewSlogLogger(slog.New(h)), w
}
