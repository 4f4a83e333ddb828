package servicelog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileLoggerWritesPerSerialNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(Event{
		Serial:    "J30452",
		Direction: "operator",
		EventType: "chat_user_message",
		Content:   "white lines on print",
	})

	path := filepath.Join(dir, "J30452.ndjson")
	line := waitForLogLine(t, path)

	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Content != "white lines on print" {
		t.Fatalf("unexpected Content: %q", got.Content)
	}
	if got.Timestamp == "" {
		t.Fatal("expected timestamp to be populated")
	}
}

func TestDisabledConfigYieldsNoop(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Log(Event{Serial: "X", EventType: "ignored"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSanitizeSerial(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"TP-HD-PLUS-LEARN-01", "TP-HD-PLUS-LEARN-01"},
		{"../../etc/passwd", "______etc_passwd"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := sanitizeSerial(tt.in); got != tt.want {
			t.Errorf("sanitizeSerial(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
