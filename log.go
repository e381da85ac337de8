package ups

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/cruppstahl/ups/internal/engine"
)

var current atomic.Pointer[slog.Logger]

// SetLogger sets the logger used for lifecycle events, leak warnings and
// engine diagnostics. A nil logger restores slog.Default().
func SetLogger(l *slog.Logger) {
	current.Store(l)
}

func logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// SetDebugLog enables or disables debug logging to stderr (for debugging
// only). It replaces any logger installed with SetLogger.
func SetDebugLog(enabled bool) {
	if !enabled {
		current.Store(nil)
		return
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	current.Store(slog.New(h).With("component", "ups"))
}

// ErrorHandler receives the diagnostic messages the engine emits when a call
// fails. level is one of the Level constants.
type ErrorHandler func(level int, message string)

// Engine diagnostic levels
const (
	LevelDebug = engine.LevelDebug
	LevelInfo  = engine.LevelInfo
	LevelWarn  = engine.LevelWarn
	LevelFatal = engine.LevelFatal
)

// SetErrorHandler installs fn as the engine's diagnostic callback. A nil fn
// restores the default, which logs through the ups logger.
func SetErrorHandler(fn ErrorHandler) {
	if fn == nil {
		engine.Default().SetErrorHandler(logEngineMessage)
		return
	}
	engine.Default().SetErrorHandler(engine.ErrorHandler(fn))
}

func logEngineMessage(level int, message string) {
	logger().Log(context.Background(), slogLevel(level), message, "source", "engine")
}

func slogLevel(level int) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	}
	return slog.LevelError
}

func init() {
	engine.Default().SetErrorHandler(logEngineMessage)
}
