package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufLogger(level, format string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       level,
		Format:      format,
		Output:      &buf,
		ServiceName: "publish-daemon",
	})
	return log, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return entry
}

func TestNewJSONIncludesService(t *testing.T) {
	log, buf := newBufLogger("info", "json")
	log.Info("daemon started")

	entry := decodeLine(t, buf)
	if entry["service"] != "publish-daemon" {
		t.Errorf("expected service attribute, got %v", entry["service"])
	}
	if entry["msg"] != "daemon started" {
		t.Errorf("expected msg 'daemon started', got %v", entry["msg"])
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufLogger("error", "json")
	log.Info("should be dropped")

	if buf.Len() != 0 {
		t.Errorf("expected info log to be filtered at error level, got %q", buf.String())
	}

	log.Error("should pass")
	if buf.Len() == 0 {
		t.Error("expected error log to pass at error level")
	}
}

func TestWithTaskID(t *testing.T) {
	log, buf := newBufLogger("info", "json")
	log.WithTaskID("task_42").Info("processing")

	entry := decodeLine(t, buf)
	if entry["task_id"] != "task_42" {
		t.Errorf("expected task_id attribute, got %v", entry["task_id"])
	}
}

func TestWithPlatform(t *testing.T) {
	log, buf := newBufLogger("info", "json")
	log.WithPlatform("youtube").Info("scheduling")

	entry := decodeLine(t, buf)
	if entry["platform"] != "youtube" {
		t.Errorf("expected platform attribute, got %v", entry["platform"])
	}
}

func TestFromContext(t *testing.T) {
	log, buf := newBufLogger("info", "json")

	ctx := ContextWithRequestID(context.Background(), "req_1")
	ctx = ContextWithTaskID(ctx, "task_1")

	log.FromContext(ctx).Info("call")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req_1" {
		t.Errorf("expected request_id from context, got %v", entry["request_id"])
	}
	if entry["task_id"] != "task_1" {
		t.Errorf("expected task_id from context, got %v", entry["task_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"warn", "WARN"},
		{"WARNING", "WARN"},
		{" Error ", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTextFormat(t *testing.T) {
	log, buf := newBufLogger("info", "text")
	log.Info("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text format output, got %q", buf.String())
	}
}
