package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "project")

	logger, err := NewLogger(projectDir, "INFO")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	logger.Info("cruncher started", "cruncher_id", "abc")

	data, err := os.ReadFile(filepath.Join(projectDir, "crunch.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "cruncher started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "cruncher started")
	}
	if entry["cruncher_id"] != "abc" {
		t.Errorf("cruncher_id = %v, want %q", entry["cruncher_id"], "abc")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "WARN")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	logger.Debug("drained queue")
	logger.Info("job added")
	logger.Warn("cruncher died")

	data, err := os.ReadFile(filepath.Join(dir, "crunch.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "drained queue") || strings.Contains(out, "job added") {
		t.Error("messages below WARN should be filtered out")
	}
	if !strings.Contains(out, "cruncher died") {
		t.Error("WARN message should be logged")
	}
}

func TestChildLoggersInheritAttrs(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "DEBUG")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	child := logger.WithComponent("manager").WithJob("job-1").WithCruncher("cr-1")
	child.Debug("syncing")

	data, err := os.ReadFile(filepath.Join(dir, "crunch.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "manager" {
		t.Errorf("component = %v, want manager", entry["component"])
	}
	if entry["job_id"] != "job-1" {
		t.Errorf("job_id = %v, want job-1", entry["job_id"])
	}
	if entry["cruncher_id"] != "cr-1" {
		t.Errorf("cruncher_id = %v, want cr-1", entry["cruncher_id"])
	}
}

func TestWithIgnoresNonStringKeys(t *testing.T) {
	logger := NopLogger()
	child := logger.With(42, "value", "nodes", 7)
	if len(child.attrs) != 1 {
		t.Errorf("expected 1 attr, got %d", len(child.attrs))
	}
	if child.attrs[0].Key != "nodes" {
		t.Errorf("attr key = %q, want %q", child.attrs[0].Key, "nodes")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	logger := NopLogger()
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger: %v", err)
	}
}
