// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup(cfg.SlogLevel())
//	logger := logging.New(os.Stdout, slog.LevelDebug, false)
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs a tint handler on stderr as the slog default.
func Setup(level slog.Level) {
	slog.SetDefault(New(os.Stderr, level, true))
}

// New builds a tint logger. Colors are disabled when w is not a terminal the
// caller controls, such as a file or a test buffer.
func New(w io.Writer, level slog.Level, color bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level <= slog.LevelDebug,
		NoColor:    !color,
	}))
}
