package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init initializes the global logger with timestamp precision to
// milliseconds. Records below min are discarded.
func Init(min slog.Level) {
	once.Do(func() {
		defaultLogger = slog.New(NewHandler(os.Stdout, min))
		slog.SetDefault(defaultLogger)
	})
}

// ParseLevel maps a configuration string to a level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch s {
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

// Handler is a custom slog handler with precise timestamps.
type Handler struct {
	out   io.Writer
	min   slog.Level
	attrs []slog.Attr // attrs added via WithAttrs, printed before record attrs
	mu    *sync.Mutex // shared across WithAttrs copies to keep lines whole
}

// NewHandler creates a new handler writing to the given writer.
func NewHandler(out io.Writer, min slog.Level) *Handler {
	return &Handler{out: out, min: min, mu: &sync.Mutex{}}
}

// Enabled reports whether the level passes the handler's minimum.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.min
}

// Handle formats and writes a log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	// Format: 2024-01-15 14:30:45.123 [INF] message key=value
	ts := r.Time.Format("2006-01-02 15:04:05.000")
	level := levelString(r.Level)

	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.out, "%s [%s] %s", ts, level, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
	}

	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
		return true
	})

	fmt.Fprintln(h.out)

	return nil
}

// WithAttrs returns a handler that prepends the given attributes to
// every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &Handler{out: h.out, min: h.min, attrs: merged, mu: h.mu}
}

// WithGroup returns the handler unchanged; groups are not used here.
func (h *Handler) WithGroup(name string) slog.Handler {
	return h
}

// levelString returns a short string for the log level.
func levelString(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return "???"
	}
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

// Timed returns elapsed time since start for logging duration.
func Timed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
