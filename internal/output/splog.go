// Package output provides console and file logging for the merge agent.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Console prefixes per level. The file handler records levels itself, so
// prefixes ride inside the message only.
const (
	warnPrefix  = "⚠️  "
	errorPrefix = "❌ "
	tipPrefix   = "💡 "
)

// consoleHandler prints bare messages: no timestamps, no level tags. The
// rotated file carries those; the console is for a human watching the run.
type consoleHandler struct {
	w     io.Writer
	debug bool
	quiet *bool // owned by Splog so quiet mode flips without rebuilding handlers
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level != slog.LevelDebug || h.debug
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if *h.quiet {
		return nil
	}
	_, err := fmt.Fprintln(h.w, record.Message)
	return err
}

func (h *consoleHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(_ string) slog.Handler      { return h }

// teeHandler forwards each record to every handler that wants it.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = h.WithGroup(name)
	}
	return next
}

// rotatingWriter builds the lumberjack sink for the attempt log. The limits
// stay small on purpose: the journal is the long-term record, the log file
// is for tailing.
func rotatingWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    envInt("SVNMERGE_LOG_MAX_SIZE", 1, 1), // megabytes
		MaxBackups: envInt("SVNMERGE_LOG_MAX_BACKUPS", 2, 0),
		MaxAge:     envInt("SVNMERGE_LOG_MAX_AGE", 30, 1), // days
	}
}

func envInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return fallback
	}
	return n
}

// Splog is the agent's logger: plain lines on the console, structured
// attempt history in a rotating file. Quiet mode hands the console to the
// TUI without silencing the file.
type Splog struct {
	logger *slog.Logger
	file   io.WriteCloser
	quiet  bool
}

// NewSplog creates a console-only logger. Debug lines show up when the
// DEBUG environment variable is set.
func NewSplog() *Splog {
	s, _ := NewSplogWithFile("")
	return s
}

// NewSplogWithFile creates a logger that also appends to a rotating log
// file when path is non-empty.
func NewSplogWithFile(path string) (*Splog, error) {
	s := &Splog{}

	handlers := teeHandler{&consoleHandler{
		w:     os.Stdout,
		debug: os.Getenv("DEBUG") != "",
		quiet: &s.quiet,
	}}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		sink := rotatingWriter(path)
		s.file = sink

		// The file keeps everything, including debug lines the console
		// hides, with second-resolution timestamps.
		handlers = append(handlers, slog.NewTextHandler(sink, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000"))
				}
				return a
			},
		}))
	}

	s.logger = slog.New(handlers)
	return s, nil
}

// SetQuiet suppresses console lines while a TUI owns the terminal. File
// logging is unaffected.
func (s *Splog) SetQuiet(quiet bool) {
	s.quiet = quiet
}

func (s *Splog) emit(level slog.Level, msg string, attrs ...any) {
	s.logger.Log(context.Background(), level, msg, attrs...)
}

// sprintf tolerates callers passing a preformatted message with no args.
// nolint // format string validation is handled internally via fmt.Sprintf
func sprintf(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Info writes a plain console line.
func (s *Splog) Info(format string, args ...interface{}) {
	s.emit(slog.LevelInfo, sprintf(format, args))
}

// Warn marks retryable trouble; the cycle carries on or retries later.
func (s *Splog) Warn(format string, args ...interface{}) {
	s.emit(slog.LevelWarn, warnPrefix+sprintf(format, args))
}

// Error marks failures that need an operator.
func (s *Splog) Error(format string, args ...interface{}) {
	s.emit(slog.LevelError, errorPrefix+sprintf(format, args))
}

// Debug lines reach the console only with DEBUG set; the file always keeps
// them.
func (s *Splog) Debug(format string, args ...interface{}) {
	s.emit(slog.LevelDebug, sprintf(format, args))
}

// Tip surfaces advisory output, e.g. a conflict analysis summary.
func (s *Splog) Tip(format string, args ...interface{}) {
	s.emit(slog.LevelInfo, tipPrefix+sprintf(format, args))
}

// Attempt writes the per-revision outcome line. The console gets the short
// form; the file also keeps the fields as attributes.
func (s *Splog) Attempt(revision int64, outcome, detail string) {
	msg := fmt.Sprintf("r%d: %s", revision, outcome)
	if detail != "" {
		msg += " (" + detail + ")"
	}
	s.emit(slog.LevelInfo, msg,
		"revision", revision,
		"outcome", outcome,
		"detail", detail,
	)
}

// Close flushes and closes the rotating file, if one was opened.
func (s *Splog) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
