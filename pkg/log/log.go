/*
Package log provides leveled logging for the topology orchestrator.

Text entries are written in the following format:

	timestamp hostname tag[pid]: SEVERITY Message key=value ...

JSON output uses the standard slog JSON handler.
*/
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	mu     sync.Mutex
	tag              = "karapace-tc"
	out    io.Writer = os.Stderr
	format           = "text"
	level            = new(slog.LevelVar)
	logger *slog.Logger
)

// TextHandler is a slog.Handler that renders records on a single line,
// prefixed with timestamp, hostname, tag and pid.
type TextHandler struct {
	level    slog.Leveler
	hostname string
	w        io.Writer
	attrs    []slog.Attr
	groups   []string
}

// NewTextHandler returns a TextHandler writing to w.
func NewTextHandler(w io.Writer, lvl slog.Leveler) *TextHandler {
	hostname, _ := os.Hostname()
	return &TextHandler{level: lvl, hostname: hostname, w: w}
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.level != nil {
		minLevel = h.level.Level()
	}
	return l >= minLevel
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s[%d]: %s %s",
		r.Time.Format(time.RFC3339), h.hostname, currentTag(), os.Getpid(),
		strings.ToUpper(r.Level.String()), r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%v", prefix, a.Key, a.Value.Any())
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	nh := *h
	nh.groups = append(append([]string{}, h.groups...), name)
	return &nh
}

func init() {
	level.Set(slog.LevelInfo)
	rebuild()
}

func currentTag() string {
	mu.Lock()
	defer mu.Unlock()
	return tag
}

// rebuild must be called with mu held, or from init.
func rebuild() {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = NewTextHandler(out, level)
	}
	logger = slog.New(handler)
}

// SetTag sets the tag printed in text entries.
func SetTag(t string) {
	mu.Lock()
	defer mu.Unlock()
	tag = t
}

// SetLevel sets the log level. Valid levels are debug, info, warn and error.
func SetLevel(l string) error {
	var lvl slog.Level
	switch strings.ToLower(l) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("not a valid level: %q", l)
	}
	level.Set(lvl)
	return nil
}

// SetFormat sets the log format. Valid formats are "text" and "json".
func SetFormat(f string) error {
	if f != "text" && f != "json" {
		return fmt.Errorf("not a valid log format: %q", f)
	}
	mu.Lock()
	defer mu.Unlock()
	format = f
	rebuild()
	return nil
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Debug logs a message with severity DEBUG.
func Debug(format string, v ...any) {
	current().Debug(fmt.Sprintf(format, v...))
}

// Info logs a message with severity INFO.
func Info(format string, v ...any) {
	current().Info(fmt.Sprintf(format, v...))
}

// Warning logs a message with severity WARN.
func Warning(format string, v ...any) {
	current().Warn(fmt.Sprintf(format, v...))
}

// Error logs a message with severity ERROR.
func Error(format string, v ...any) {
	current().Error(fmt.Sprintf(format, v...))
}

// Fatal logs a message with severity ERROR followed by a call to os.Exit(1).
func Fatal(format string, v ...any) {
	current().Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

// DebugContext logs a structured message with severity DEBUG.
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, args...)
}

// InfoContext logs a structured message with severity INFO.
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, args...)
}

// WarnContext logs a structured message with severity WARN.
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, args...)
}

// ErrorContext logs a structured message with severity ERROR.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, args...)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Logger returns the underlying slog.Logger.
func Logger() *slog.Logger {
	return current()
}
