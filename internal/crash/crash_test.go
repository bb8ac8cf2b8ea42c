package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopanelreader/internal/config"
)

func TestWriteReportCreatesFileInConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)

	path, err := writeReport("", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected report under config dir %s, got %s", dir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "GoPanelReader Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
	if strings.Contains(s, "Document:") {
		t.Fatalf("document line present for empty document: %s", s)
	}
}

func TestWriteReportNamesDocument(t *testing.T) {
	t.Setenv(config.EnvConfigDir, t.TempDir())

	path, err := writeReport("/comics/vol1.cbz", "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "Document: /comics/vol1.cbz") {
		t.Fatalf("document line missing: %s", string(b))
	}
}
