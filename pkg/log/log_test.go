package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		_ = SetFormat("text")
		_ = SetLevel("info")
		SetOutput(&bytes.Buffer{})
	})
	return &buf
}

func TestSetTag(t *testing.T) {
	buf := capture(t)
	original := currentTag()
	defer SetTag(original)

	SetTag("test-app")
	Info("hello")
	if !strings.Contains(buf.String(), " test-app[") {
		t.Errorf("Info() output = %q, want tag test-app", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug level", "debug", slog.LevelDebug, false},
		{"info level", "info", slog.LevelInfo, false},
		{"warn level", "warn", slog.LevelWarn, false},
		{"warning level", "warning", slog.LevelWarn, false},
		{"error level", "ERROR", slog.LevelError, false},
		{"invalid level", "verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level.Set(slog.LevelInfo)
			err := SetLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if level.Level() != tt.expected {
				t.Errorf("SetLevel(%q) level = %v, want %v", tt.level, level.Level(), tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	if err := SetLevel("warn"); err != nil {
		t.Fatal(err)
	}

	Info("dropped")
	Warning("kept %d", 1)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("output contains info entry at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN kept 1") {
		t.Errorf("output = %q, want warning entry", out)
	}
}

func TestSetFormat_JSON(t *testing.T) {
	buf := capture(t)
	if err := SetFormat("json"); err != nil {
		t.Fatal(err)
	}

	InfoContext(context.Background(), "storage started", "backend", "kafka")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "storage started" || entry["backend"] != "kafka" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetFormat_Invalid(t *testing.T) {
	if err := SetFormat("xml"); err == nil {
		t.Error("SetFormat(xml) expected error")
	}
}

func TestTextHandler_Attrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, slog.LevelDebug)
	l := slog.New(h).With("component", "registry").WithGroup("wait")
	l.Debug("ready", "occurrences", 2)

	out := buf.String()
	for _, want := range []string{"DEBUG ready", "component=registry", "wait.occurrences=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %q, missing %q", out, want)
		}
	}
}
