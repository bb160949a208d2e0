// Package logging configures structured logging with log/slog.
//
// Development runs get colored output through tint; production runs set
// LOG_FORMAT=json and get one JSON object per line.
//
// Environment variables:
//
//	LOG_LEVEL:  debug, info, warn, error (default: info)
//	LOG_FORMAT: text, json (default: text)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures the default logger from LOG_LEVEL and LOG_FORMAT.
func Setup() {
	SetupWith(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// SetupWith configures the default logger from explicit level and format names.
func SetupWith(level, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, ParseLevel(level), format)))
}

// NewHandler builds the handler Setup installs, writing to w.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
	})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
