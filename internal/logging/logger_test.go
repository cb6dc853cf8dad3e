package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redact/internal/services"
)

func TestNewWritesConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redact.log")
	logger, err := New(Options{Level: "debug", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger = WithComponent(logger, "scanner")
	logger.Info("document scanned", Int("findings", 3), String("name", "talk one"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO scanner: document scanned") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "findings=3") {
		t.Fatalf("missing attribute: %q", line)
	}
	if !strings.Contains(line, `name="talk one"`) {
		t.Fatalf("expected quoted value: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redact.log")
	logger, err := New(Options{Level: "info", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := services.WithTalkID(context.Background(), "talk-1")
	ctx = services.WithDocumentID(ctx, 42)
	ctx = services.WithStage(ctx, "scan")
	WithContext(ctx, logger).Info("working")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, fragment := range []string{"talk_id=talk-1", "document_id=42", "stage=scan"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("log line %q missing %q", line, fragment)
		}
	}
}
