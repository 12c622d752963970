// Package logging provides leveled operational logging and an optional
// per-day stats trace.
//   - A leveled slog.Logger for stdout/stderr
//   - A DayLogger writing one JSONL line per track per day (days.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug and enables per-day tracing.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "warn", "info", "debug" or "trace" (case-insensitive)
// to a slog.Level. Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w. format "json"
// selects the JSON handler; anything else uses text.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DayLogger appends per-day track stats to a JSONL file. It is safe for
// concurrent use, and every method is a no-op on a nil receiver.
type DayLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDayLogger opens dir/days.jsonl for append at trace level. At any other
// level, or if the file cannot be opened, it returns nil.
func NewDayLogger(dir, level string) *DayLogger {
	if ParseLevel(level) != LevelTrace || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "days.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DayLogger{file: f}
}

// Log writes one event line with a "time" field added. The caller's map is
// not mutated.
func (dl *DayLogger) Log(event map[string]any) {
	if dl == nil || dl.file == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	_, _ = dl.file.Write(data)
}

// Close closes the underlying file.
func (dl *DayLogger) Close() {
	if dl == nil || dl.file == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.file.Close()
	dl.file = nil
}
