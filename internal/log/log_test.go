package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Debug("catalog loaded", "items", 42)

	out := buf.String()
	if !strings.Contains(out, "catalog loaded") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "items=42") {
		t.Errorf("output missing attribute: %q", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("request handled", "path", "/chat")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "request handled" {
		t.Errorf("msg = %v, want %q", entry["msg"], "request handled")
	}
	if entry["path"] != "/chat" {
		t.Errorf("path = %v, want %q", entry["path"], "/chat")
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Info("should be dropped")
	logger.Warn("should be kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("info entry leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "should be kept") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	logger := NewNop()
	// Must not panic and must accept arbitrary attributes.
	logger.Error("ignored", "key", "value")
}
