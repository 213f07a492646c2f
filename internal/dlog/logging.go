// Package dlog provides the structured logging used across the dotlite
// engine. It wraps Go's standard log/slog the same way the retrieval pack's
// JuniperBible repo wraps it under internal/logging: a single configurable
// package-level logger constructed once, passed down through plain function
// calls rather than smuggled through a context value.
package dlog

import (
	"log/slog"
	"os"
)

// Level mirrors slog's levels under names that read naturally at call sites
// that don't want to import log/slog directly.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// defaultLevel is the minimum level of the default text handler; its zero
// value is LevelInfo.
var defaultLevel = new(slog.LevelVar)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: defaultLevel}))

// Init replaces the package-level logger; callers embedding dotlite in a
// larger application can redirect its logs to their own handler.
func Init(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// SetLevel adjusts the minimum level of the default text handler. It has no
// effect if Init was called with a custom logger.
func SetLevel(level Level) {
	defaultLevel.Set(level)
}

func Debug(msg string, args ...any) { logger.Debug(msg, args...) }
func Info(msg string, args ...any)  { logger.Info(msg, args...) }
func Warn(msg string, args ...any)  { logger.Warn(msg, args...) }
func Error(msg string, args ...any) { logger.Error(msg, args...) }
