package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning", "WARNING", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"mixed case", "Debug", slog.LevelDebug},
		{"padded", " trace ", LevelTrace},
		{"unknown defaults to info", "loud", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"warn", false, false},
		{"info", false, true},
		{"debug", true, true},
		{"trace", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, "text", &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug visible = %v, want %v", got, tt.logAtDebug)
			}
			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.logAtInfo {
				t.Errorf("info visible = %v, want %v", got, tt.logAtInfo)
			}
		})
	}
}

func TestNewLoggerJSONAndTraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", "json", &buf)
	logger.Log(context.Background(), LevelTrace, "day traced", "day", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", line["level"])
	}
	if line["day"] != float64(3) {
		t.Errorf("day = %v, want 3", line["day"])
	}
}

func TestDayLoggerNilBelowTrace(t *testing.T) {
	dir := t.TempDir()
	dl := NewDayLogger(dir, "debug")
	if dl != nil {
		t.Fatal("expected nil DayLogger below trace level")
	}
	dl.Log(map[string]any{"track": "actual"})
	dl.Close()

	if _, err := os.Stat(filepath.Join(dir, "days.jsonl")); err == nil {
		t.Error("days.jsonl should not exist below trace level")
	}
}

func TestDayLoggerWritesLines(t *testing.T) {
	dir := t.TempDir()
	dl := NewDayLogger(dir, "trace")
	if dl == nil {
		t.Fatal("expected DayLogger at trace level")
	}

	event := map[string]any{"track": "worst", "day": 2}
	dl.Log(event)
	dl.Log(map[string]any{"track": "best", "day": 2})
	dl.Close()
	dl.Log(map[string]any{"track": "after close"})

	if _, ok := event["time"]; ok {
		t.Error("Log mutated the caller's map")
	}

	f, err := os.Open(filepath.Join(dir, "days.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d not JSON: %v", lines+1, err)
		}
		if _, ok := entry["time"]; !ok {
			t.Errorf("line %d missing time", lines+1)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}
