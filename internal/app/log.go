package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// lfuHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// Each record is written with a single Write call.
type lfuHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler
	runID string
	attrs []slog.Attr
}

func newHandler(w io.Writer, runID string, level slog.Leveler) *lfuHandler {
	return &lfuHandler{w: w, mu: &sync.Mutex{}, level: level, runID: runID}
}

func (h *lfuHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lfuHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&buf, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.runID, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *lfuHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lfuHandler{
		w:     h.w,
		mu:    h.mu,
		level: h.level,
		runID: h.runID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *lfuHandler) WithGroup(string) slog.Handler { return h }

// ParseLevel maps a config log_level to a slog level. Empty means info.
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
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// newLogger creates a structured logger that writes to stderr and to a
// rotating logDir/lfu.log. The returned closer releases the log file.
func newLogger(logDir, runID string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "lfu.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
	}

	w := io.MultiWriter(file, os.Stderr)
	return slog.New(newHandler(w, runID, level)), file, nil
}

// slogAdapter wraps *slog.Logger to satisfy the lfu.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
