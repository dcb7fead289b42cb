package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigure_DisabledIsNoOp(t *testing.T) {
	if err := Configure(Options{DebugMode: false}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	defer Close()

	// Must not panic or create files.
	Get(CategoryGateway).Info("ignored %d", 1)
}

func TestConfigure_WritesCategoryFile(t *testing.T) {
	ws := t.TempDir()
	if err := Configure(Options{Workspace: ws, DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	defer Close()

	Get(CategoryExtraction).Info("extracted %d actions", 3)
	Get(CategoryExtraction).Debug("prompt length %d", 120)
	Close()

	data, err := os.ReadFile(filepath.Join(ws, ".concierge", "logs", "extraction.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "extracted 3 actions") {
		t.Errorf("missing info line in %q", text)
	}
	if !strings.Contains(text, "prompt length 120") {
		t.Errorf("missing debug line in %q", text)
	}
}

func TestLevelFilter(t *testing.T) {
	ws := t.TempDir()
	if err := Configure(Options{Workspace: ws, DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	defer Close()

	l := Get(CategoryGateway)
	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")
	Close()

	data, err := os.ReadFile(filepath.Join(ws, ".concierge", "logs", "gateway.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Errorf("level filter leaked: %q", string(data))
	}
	if !strings.Contains(string(data), "kept") {
		t.Errorf("warn line missing: %q", string(data))
	}
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	err := Configure(Options{
		Workspace:  ws,
		DebugMode:  true,
		Categories: map[string]bool{"routing": false},
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	defer Close()

	Get(CategoryRouting).Info("nope")
	Get(CategorySupervisor).Info("yes")
	Close()

	if _, err := os.Stat(filepath.Join(ws, ".concierge", "logs", "routing.log")); err == nil {
		t.Error("disabled category wrote a file")
	}
	if _, err := os.Stat(filepath.Join(ws, ".concierge", "logs", "supervisor.log")); err != nil {
		t.Error("enabled category did not write a file")
	}
}
