// Package logging provides the structured diagnostic logger. Output goes to a
// file (or any writer) as JSON lines, never to the terminal the UI owns.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/dnetui/pkg/errors"
)

// Logger is a structured logger for dnetui components
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger writing to w.
func New(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler).With(slog.String("system", "dnetui"))}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// Open creates the log file's directory, opens it for appending and returns
// a logger writing to it. The caller closes the returned file.
func Open(path string, level slog.Level) (*Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, level), f, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewRunID returns a sortable identifier for one process run.
func NewRunID() string {
	return ulid.Make().String()
}

// WithRun returns a logger tagged with the run ID.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("run_id", runID))}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", component))}
}

// WithWindow returns a logger tagged with a window ID.
func (l *Logger) WithWindow(id string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("window", id))}
}

// FocusChanged logs a focus transition applied by the scheduler.
func (l *Logger) FocusChanged(from, to string) {
	l.Debug("focus changed",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// TransitionRejected logs a window that fired an undeclared view transition.
func (l *Logger) TransitionRejected(window string, err error) {
	l.Error("view transition rejected",
		slog.String("window", window),
		slog.String("error", err.Error()),
	)
}

// WindowFailed logs a tick or handle error that was contained to one cycle.
func (l *Logger) WindowFailed(window, op string, err error) {
	l.Warn("window call failed",
		slog.String("window", window),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

// RunFailed logs the fault that ended the event loop, with the stack it
// was raised from when it carries one.
func (l *Logger) RunFailed(err error) {
	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("code", string(errors.GetCode(err))),
	}
	if e, ok := errors.As(err); ok && len(e.Stack) > 0 {
		attrs = append(attrs, slog.String("stack", e.StackTrace()))
	}
	l.Error("run ended", attrs...)
}

// InputError logs a failed input poll.
func (l *Logger) InputError(err error, suppressed int) {
	l.Warn("input poll failed",
		slog.String("error", err.Error()),
		slog.Int("suppressed", suppressed),
	)
}

// CycleSlow logs a cycle that overran the tick interval.
func (l *Logger) CycleSlow(elapsed, interval time.Duration) {
	l.Debug("cycle overran tick interval",
		slog.Duration("elapsed", elapsed),
		slog.Duration("interval", interval),
	)
}

// Fetch logs a background API poll result.
func (l *Logger) Fetch(source string, elapsed time.Duration, err error) {
	if err != nil {
		l.Warn("fetch failed",
			slog.String("source", source),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Debug("fetch ok",
		slog.String("source", source),
		slog.Duration("elapsed", elapsed),
	)
}
