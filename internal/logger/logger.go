// Package logger provides the structured logging used across sitescrape.
// It wraps a process-wide slog.Logger that the CLI configures once at
// startup; library packages only call the package-level helpers.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var active atomic.Pointer[slog.Logger]

func init() {
	active.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Options configures the logger.
type Options struct {
	Debug  bool         // debug level
	Quiet  bool         // errors only; wins over Debug
	JSON   bool         // JSON lines instead of logfmt-style text
	Output io.Writer    // default: stderr
	Logger *slog.Logger // use as-is, ignoring the other fields
}

// Level returns the slog level selected by the options.
func (o Options) Level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelError
	case o.Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Init replaces the process logger.
func Init(opts Options) {
	if opts.Logger != nil {
		active.Store(opts.Logger)
		return
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}

	var h slog.Handler = slog.NewTextHandler(out, handlerOpts)
	if opts.JSON {
		h = slog.NewJSONHandler(out, handlerOpts)
	}
	active.Store(slog.New(h))
}

// SetLogger installs an application's own logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		active.Store(l)
	}
}

func current() *slog.Logger { return active.Load() }

// Debug logs a debug message.
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { current().Error(msg, args...) }

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger { return current().With(args...) }

// Component returns a logger tagged with a component name.
func Component(name string) *slog.Logger { return current().With("component", name) }

func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, args...)
}
