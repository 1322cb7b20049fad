package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", "")
	l.Info().Str("component", "ledger").Msg("entry recorded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["message"] != "entry recorded" {
		t.Errorf("message = %v", line["message"])
	}
	if line["component"] != "ledger" {
		t.Errorf("component = %v", line["component"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("expected a timestamp field")
	}
}

func TestNew_ConsoleFormatIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console", "15:04")
	l.Info().Msg("hello")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("console output should not be JSON: %q", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Errorf("console output missing message: %q", buf.String())
	}
}

func TestSetup_InvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	if _, err := Setup(cfg); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSetup_FileOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Output = filepath.Join(t.TempDir(), "app.log")
	if _, err := Setup(cfg); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _, _ = Setup(DefaultConfig()) })
}
