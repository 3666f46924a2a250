package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("loud", ""); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dictation.log")

	logger, err := New("info", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("recording started")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"recording started"`) {
		t.Fatalf("log file missing entry: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry written at info level: %s", out)
	}
}

func TestQuietWithoutFileDiscards(t *testing.T) {
	logger, err := Quiet("debug", "")
	if err != nil {
		t.Fatalf("Quiet: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("expected a no-op logger")
	}
}
