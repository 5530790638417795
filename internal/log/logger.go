// Package log wraps slog with component-scoped loggers and the field
// vocabulary the rest of the repo logs with.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger that stamps every record with its component.
type Logger struct {
	*slog.Logger
	handler   slog.Handler
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig returns text logging to stdout at the level LOG_LEVEL
// selects (default info), under the "app" component.
func DefaultConfig() Config {
	return Config{
		Level:     LevelFromEnv(),
		Component: ComponentApp,
	}
}

// LevelFromEnv maps LOG_LEVEL (debug, info, warn, error) to a slog level.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// New creates a logger with the given configuration. The component is
// attached once here instead of on every call site.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}

	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, config.Component),
		handler:   handler,
		component: config.Component,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		handler:   l.handler,
		component: l.component,
	}
}

// WithComponent returns a logger of another component sharing the same
// handler. It rebuilds from the handler so the component attribute is
// replaced, not stacked.
func (l *Logger) WithComponent(component string) *Logger {
	handler := l.handler
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, component),
		handler:   handler,
		component: component,
	}
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
