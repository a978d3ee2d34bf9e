// Package log wraps log/slog with component tagging and HTTP request
// logging middleware.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Standard component names used across the application.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAuth    = "auth"
)

// Logger wraps slog.Logger with a component field attached to every
// record. base carries the shared attributes without the component tag
// so retagging never stacks a second component field.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch level {
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

// New creates a logger writing text records to stdout at the given level.
func New(level slog.Level) *Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level slog.Level) *Logger {
	base := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return &Logger{
		Logger:    base.With("component", ComponentApp),
		base:      base,
		component: ComponentApp,
	}
}

// WithComponent returns a logger retagged with a component name,
// replacing the current tag rather than adding a second one.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.base.With("component", component),
		base:      l.base,
		component: component,
	}
}

// With returns a logger with extra attributes attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base.With(args...),
		component: l.component,
	}
}

// SetDefault installs the logger as the process-wide slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
